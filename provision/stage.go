package provision

// Stage is a step of the connection lifecycle.
type Stage int

// Lifecycle stages, in order.
const (
	StageUnauthenticated Stage = iota
	StageAuthenticated
	StageCreated
	StageVerified
	StageLocated
	StageLinked
)

var stageNames = [...]string{
	StageUnauthenticated: "unauthenticated",
	StageAuthenticated:   "authenticated",
	StageCreated:         "created",
	StageVerified:        "verified",
	StageLocated:         "located",
	StageLinked:          "linked",
}

// String returns the lowercase stage name.
func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// Terminal reports whether a run that reached s produced a link.
func (s Stage) Terminal() bool {
	return s == StageLinked
}
