package games

import "errors"

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrWrongGameType       = errors.New("action not available for this game type")
	ErrNotHost             = errors.New("only the host can do that")
	ErrInvalidPhase        = errors.New("action not allowed in the current phase")
	ErrDuplicateAnswer     = errors.New("you have already answered this question")
	ErrValidation          = errors.New("invalid request")
	ErrDuplicateRoom       = errors.New("a room with that code already exists")
	ErrDuplicatePlayerName = errors.New("player name already in use")
	ErrForbidden           = errors.New("that player belongs to another session")
	ErrVersionConflict     = errors.New("room was modified concurrently")
	ErrUnknownCommand      = errors.New("unknown action")
)

// domainErrors are reported to the caller verbatim; anything else is internal.
var domainErrors = []error{
	ErrRoomNotFound,
	ErrWrongGameType,
	ErrNotHost,
	ErrInvalidPhase,
	ErrDuplicateAnswer,
	ErrValidation,
	ErrDuplicateRoom,
	ErrDuplicatePlayerName,
	ErrForbidden,
	ErrUnknownCommand,
}

const internalErrorMessage = "internal error, please try again"

// IsDomainError reports whether err is a rule violation rather than a failure.
func IsDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// UserMessage is the text shown to the originating connection for err.
func UserMessage(err error) string {
	if IsDomainError(err) {
		return err.Error()
	}
	return internalErrorMessage
}
