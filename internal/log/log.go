package log

const (
	// FldFile is the name of the log field for storing a file name
	FldFile = "file"
	// FldPath is the name of the log field for storing path name information
	FldPath = "path"
	// FldTransport is the name of the log field for storing a transport name
	FldTransport = "transport"
	// FldUser is the name of the log field for storing the name of the currently logged-in admin
	FldUser = "user"
	// FldVersion is the version number of the application
	FldVersion = "ver"
	// FldIP is the IP address used in the log entry
	FldIP = "ip"
	// FldID is the ID of an entity used in the log entry
	FldID = "id"
	// FldEvent is the ID of the event an operation works on
	FldEvent = "event"
	// FldTags is a tag filter used when listing events
	FldTags = "tags"
	// FldMedia is the remote ID of an image or video inside the media store
	FldMedia = "media"
	// FldMediaKind is the kind of media ("image" or "video")
	FldMediaKind = "kind"
	// FldRepo is the name of the repository implementation writing the log entry
	FldRepo = "repo"
	// FldRecordType is the type of a donation, payment or contact record
	FldRecordType = "type"
	// FldMailTo is the recipient of a notification mail
	FldMailTo = "to"
)
