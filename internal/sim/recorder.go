package sim

import (
	"github.com/san-kum/orbitsim/internal/dynamo"
)

// Recorder is an observer that keeps every frame it sees. The simulator
// already records positions; Recorder also keeps velocities and masses.
type Recorder struct {
	Frames []dynamo.Frame
}

func NewRecorder(capacity int) *Recorder {
	return &Recorder{Frames: make([]dynamo.Frame, 0, capacity)}
}

func (r *Recorder) OnStep(f dynamo.Frame) {
	r.Frames = append(r.Frames, f)
}

func (r *Recorder) Len() int { return len(r.Frames) }
