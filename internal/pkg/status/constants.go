package status

// Status represents job lifecycle state
type Status int

const (
	// Queued - job accepted, waiting for a worker
	Queued Status = iota + 1
	// Processing - a worker drives the job
	Processing
	// Completed - final state, transcript ready
	Completed
	// Failed - final state, diagnostic recorded
	Failed
)

var (
	statusName = map[Status]string{Queued: "queued", Processing: "processing",
		Completed: "completed", Failed: "failed"}
	nameStatus = map[string]Status{"queued": Queued, "processing": Processing,
		"completed": Completed, "failed": Failed}
)

func (st Status) String() string {
	return statusName[st]
}

// From returns status obj from string
func From(st string) Status {
	return nameStatus[st]
}

// Terminal indicates no further transitions are allowed
func (st Status) Terminal() bool {
	return st == Completed || st == Failed
}

// CanTransition checks if a move from st to to is allowed.
// Only forward moves: queued -> processing -> {completed, failed}.
// queued -> failed covers jobs rejected before a worker picked them up
func (st Status) CanTransition(to Status) bool {
	switch st {
	case Queued:
		return to == Processing || to == Failed
	case Processing:
		return to == Completed || to == Failed
	}
	return false
}
