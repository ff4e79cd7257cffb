package ecg

import "fmt"

// ChangeKind identifies what changed in a Store.
type ChangeKind int

const (
	ChangeRecordAdded ChangeKind = iota + 1
	ChangeRecordRemoved
	ChangeRecordUpdated
	ChangeTaxonomy
	ChangeCommonAnnotations
	ChangeArchiving
	ChangeListReady
	ChangeServerError
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeRecordAdded:
		return "record_added"
	case ChangeRecordRemoved:
		return "record_removed"
	case ChangeRecordUpdated:
		return "record_updated"
	case ChangeTaxonomy:
		return "taxonomy"
	case ChangeCommonAnnotations:
		return "common_annotations"
	case ChangeArchiving:
		return "archiving"
	case ChangeListReady:
		return "list_ready"
	case ChangeServerError:
		return "server_error"
	default:
		return "unknown"
	}
}

// Change describes one mutation of a Store. ID is set for record changes,
// Err for ChangeServerError.
type Change struct {
	Kind ChangeKind
	ID   string
	Err  error
}

// ServerError is an error reported by the server through an ERROR event.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("ecg: server error: %s", e.Message)
}
