// Package fixture prepares session stores for command tests.
package fixture

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/opst/chemviz/cmd/chemviz/rest"
	"github.com/opst/chemviz/cmd/chemviz/session"
	"github.com/opst/chemviz/cmd/chemviz/subcommands/logger"
	"github.com/opst/chemviz/pkg/utils/try"
)

// LoggedIn returns a store restored from a session file of the user.
func LoggedIn(t *testing.T, client rest.ChemvizClient, username, token string) (*session.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session")
	content := fmt.Sprintf("authToken: %s\nusername: %s\n", token, username)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	store := session.New(path, client, logger.Null())
	if who := try.To(store.Restore()).OrFatal(t); who == nil {
		t.Fatal("session is not restored")
	}
	return store, path
}

// Anonymous returns a store without session file.
func Anonymous(t *testing.T, client rest.ChemvizClient) (*session.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session")
	store := session.New(path, client, logger.Null())
	try.To(store.Restore()).OrFatal(t)
	return store, path
}
