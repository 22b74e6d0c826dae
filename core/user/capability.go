package user

// Capability is an action a role may be allowed to perform.
type Capability string

const (
	CapAskDoubt      Capability = "ask_doubt"
	CapAnswerDoubt   Capability = "answer_doubt"
	CapSubmitContent Capability = "submit_content"
	CapModerate      Capability = "moderate"
	CapViewReports   Capability = "view_reports"
)

type capabilitySet map[Capability]struct{}

func newCapabilitySet(caps ...Capability) capabilitySet {
	set := make(capabilitySet, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}

var roleCapabilities = map[Role]capabilitySet{
	RoleJunior:  newCapabilitySet(CapAskDoubt),
	RoleSenior:  newCapabilitySet(CapAnswerDoubt, CapSubmitContent),
	RoleFaculty: newCapabilitySet(CapAnswerDoubt, CapModerate, CapViewReports),
}

// Can reports whether r grants capability c.
func (r Role) Can(c Capability) bool {
	_, ok := roleCapabilities[r][c]
	return ok
}

// CanAny reports whether r grants at least one of caps. An empty caps list always passes.
func (r Role) CanAny(caps ...Capability) bool {
	if len(caps) == 0 {
		return true
	}
	for _, c := range caps {
		if r.Can(c) {
			return true
		}
	}
	return false
}
