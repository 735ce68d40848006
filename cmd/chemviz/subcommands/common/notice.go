package common

import (
	"fmt"
	"io"

	"github.com/opst/chemviz/cmd/chemviz/notice"
)

// NoticeBoard returns a board printing each notice to w as a line.
func NoticeBoard(w io.Writer) *notice.Board {
	b := notice.NewBoard()
	b.Subscribe(func(n notice.Notice) { fmt.Fprintln(w, n) })
	return b
}
