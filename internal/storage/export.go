package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/orbitsim/internal/dynamo"
)

type ExportData struct {
	Run       RunMetadata   `json:"run"`
	Steps     []int         `json:"steps"`
	Times     []float64     `json:"times"`
	Positions [][][]float64 `json:"positions"`
}

// ExportJSON writes a run and its full trajectory as a single JSON
// document, positions indexed [snapshot][particle][axis].
func ExportJSON(w io.Writer, meta *RunMetadata, traj *dynamo.Trajectory) error {
	data := ExportData{
		Run:       *meta,
		Steps:     make([]int, traj.Len()),
		Times:     make([]float64, traj.Len()),
		Positions: make([][][]float64, traj.Len()),
	}

	for k, snap := range traj.Snapshots {
		data.Steps[k] = snap.Step
		data.Times[k] = snap.Time
		data.Positions[k] = rows(snap.Positions)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
