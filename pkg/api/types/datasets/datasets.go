package datasets

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opst/chemviz/pkg/cmp"
)

// Dataset is the summary computed by the backend for one uploaded CSV.
type Dataset struct {
	Id                 int              `json:"id"`
	Filename           string           `json:"filename"`
	UploadedAt         time.Time        `json:"uploaded_at"`
	TotalEquipment     int              `json:"total_equipment"`
	AverageFlowrate    float64          `json:"average_flowrate"`
	AveragePressure    float64          `json:"average_pressure"`
	AverageTemperature float64          `json:"average_temperature"`
	TypeDistribution   TypeDistribution `json:"type_distribution"`
}

func (d *Dataset) Equal(o *Dataset) bool {
	if d == nil || o == nil {
		return d == nil && o == nil
	}
	return d.Id == o.Id &&
		d.Filename == o.Filename &&
		d.UploadedAt.Equal(o.UploadedAt) &&
		d.TotalEquipment == o.TotalEquipment &&
		d.AverageFlowrate == o.AverageFlowrate &&
		d.AveragePressure == o.AveragePressure &&
		d.AverageTemperature == o.AverageTemperature &&
		d.TypeDistribution.Equal(o.TypeDistribution)
}

// Summary is the aggregate over all datasets of a user.
type Summary struct {
	TotalCount         int              `json:"total_count"`
	TotalEquipment     int              `json:"total_equipment"`
	AverageFlowrate    float64          `json:"average_flowrate"`
	AveragePressure    float64          `json:"average_pressure"`
	AverageTemperature float64          `json:"average_temperature"`
	TypeDistribution   TypeDistribution `json:"type_distribution"`
	DatasetsCount      int              `json:"datasets_count"`
}

// UploadResult is the response of a successful upload.
type UploadResult struct {
	TotalEquipment     int              `json:"total_equipment"`
	AverageFlowrate    float64          `json:"average_flowrate"`
	AveragePressure    float64          `json:"average_pressure"`
	AverageTemperature float64          `json:"average_temperature"`
	TypeDistribution   TypeDistribution `json:"type_distribution"`
}

type TypeCount struct {
	Type  string
	Count int
}

// TypeDistribution is the count of equipment per type.
//
// It is a JSON object on the wire. Entries keep the order of keys in the
// JSON document they are decoded from.
type TypeDistribution []TypeCount

func (td TypeDistribution) Equal(o TypeDistribution) bool {
	return cmp.SliceEq(td, o)
}

// Total is the sum of all counts.
func (td TypeDistribution) Total() int {
	total := 0
	for _, tc := range td {
		total += tc.Count
	}
	return total
}

// Get returns the count of the type.
func (td TypeDistribution) Get(typ string) (int, bool) {
	for _, tc := range td {
		if tc.Type == typ {
			return tc.Count, true
		}
	}
	return 0, false
}

func (td *TypeDistribution) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*td = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("type_distribution should be an object, but %v", tok)
	}

	ret := TypeDistribution{}
	for dec.More() {
		ktok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := ktok.(string)
		if !ok {
			return fmt.Errorf("unexpected key in type_distribution: %v", ktok)
		}
		var count int
		if err := dec.Decode(&count); err != nil {
			return fmt.Errorf("type_distribution[%s]: %w", key, err)
		}
		ret = append(ret, TypeCount{Type: key, Count: count})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*td = ret
	return nil
}

func (td TypeDistribution) MarshalJSON() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte('{')
	for nth, tc := range td {
		if 0 < nth {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(tc.Type)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		fmt.Fprintf(buf, ":%d", tc.Count)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
