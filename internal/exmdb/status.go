package exmdb

import "strconv"

// Status is the response code carried in the first payload byte of every
// exmdb reply.
type Status uint8

const (
	StatusSuccess           Status = 0
	StatusAccessDeny        Status = 1
	StatusMaxReached        Status = 2
	StatusLackMemory        Status = 3
	StatusMisconfigPrefix   Status = 4
	StatusMisconfigMode     Status = 5
	StatusConnectIncomplete Status = 6
	StatusPullError         Status = 7
	StatusDispatchError     Status = 8
	StatusPushError         Status = 9
)

var statusNames = [...]string{
	StatusSuccess:           "success",
	StatusAccessDeny:        "access-deny",
	StatusMaxReached:        "max-reached",
	StatusLackMemory:        "lack-memory",
	StatusMisconfigPrefix:   "misconfig-prefix",
	StatusMisconfigMode:     "misconfig-mode",
	StatusConnectIncomplete: "connect-incomplete",
	StatusPullError:         "pull-error",
	StatusDispatchError:     "dispatch-error",
	StatusPushError:         "push-error",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "status(" + strconv.Itoa(int(s)) + ")"
}
