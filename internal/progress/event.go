package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart  Stage = "RUN_START"
	StageBatchDone Stage = "BATCH_DONE"
	StageRunDone   Stage = "RUN_DONE"
	StageRunError  Stage = "RUN_ERROR"
)

// Event captures a single step of a reported run.
type Event struct {
	// RunID identifies the run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Name is the human readable run description, set on RUN_START.
	Name string
	// Total is the expected item count on RUN_START; zero when unknown.
	Total int64
	// Items carries the item delta for BATCH_DONE and the final count on completion.
	Items int64
	// Batches carries the batch delta for BATCH_DONE and the final count on completion.
	Batches int64
	// Dur is the run runtime on completion.
	Dur time.Duration
	// Note lets emitters attach low-volume context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StageBatchDone:
		if e.Batches <= 0 {
			return errors.New("batch done requires a positive batch count")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Items < 0 || e.Batches < 0 || e.Total < 0 {
		return errors.New("counts must be >= 0")
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID for repositories.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
