// Package protocol defines the messages exchanged between a broadcast server
// and its observers, and the newline-delimited JSON framing that carries them.
package protocol

import "fmt"

type MessageType string

const (
	MsgFileAdded     MessageType = "file_added"
	MsgFileDeleted   MessageType = "file_deleted"
	MsgFolderAdded   MessageType = "folder_added"
	MsgFolderDeleted MessageType = "folder_deleted"
	MsgDisconnect    MessageType = "disconnect"
	MsgServerStopped MessageType = "server_stopped"
)

// Message is the wire envelope. Change events carry the affected path in
// Path; server_stopped reuses Path for a human-readable notice.
type Message struct {
	Type MessageType `json:"type"`
	Path string      `json:"path,omitempty"`
}

type ChangeKind int

const (
	Created ChangeKind = iota
	Deleted
)

func (k ChangeKind) String() string {
	if k == Deleted {
		return "Deleted"
	}
	return "Created"
}

type EntryType int

const (
	File EntryType = iota
	Directory
)

func (e EntryType) String() string {
	if e == Directory {
		return "Directory"
	}
	return "File"
}

// ChangeEvent records a single create or delete under a watched tree.
type ChangeEvent struct {
	Kind  ChangeKind
	Entry EntryType
	Path  string
}

// Message converts the event to its wire form.
func (e ChangeEvent) Message() Message {
	var t MessageType
	switch {
	case e.Kind == Created && e.Entry == Directory:
		t = MsgFolderAdded
	case e.Kind == Deleted && e.Entry == Directory:
		t = MsgFolderDeleted
	case e.Kind == Deleted:
		t = MsgFileDeleted
	default:
		t = MsgFileAdded
	}
	return Message{Type: t, Path: e.Path}
}

// String renders the event the way observers display it,
// e.g. "File Added: /data/x.txt" or "Folder Deleted: /data/sub".
func (e ChangeEvent) String() string {
	noun := "File"
	if e.Entry == Directory {
		noun = "Folder"
	}
	verb := "Added"
	if e.Kind == Deleted {
		verb = "Deleted"
	}
	return fmt.Sprintf("%s %s: %s", noun, verb, e.Path)
}

type ControlKind int

const (
	Disconnect ControlKind = iota
	ServerStopped
)

func (k ControlKind) String() string {
	if k == ServerStopped {
		return "ServerStopped"
	}
	return "Disconnect"
}

// ControlMessage signals session teardown from either side.
type ControlMessage struct {
	Kind   ControlKind
	Detail string
}

func (c ControlMessage) Message() Message {
	if c.Kind == ServerStopped {
		return Message{Type: MsgServerStopped, Path: c.Detail}
	}
	return Message{Type: MsgDisconnect}
}

// ChangeEvent reports whether m carries a filesystem change and decodes it.
func (m Message) ChangeEvent() (ChangeEvent, bool) {
	switch m.Type {
	case MsgFileAdded:
		return ChangeEvent{Kind: Created, Entry: File, Path: m.Path}, true
	case MsgFileDeleted:
		return ChangeEvent{Kind: Deleted, Entry: File, Path: m.Path}, true
	case MsgFolderAdded:
		return ChangeEvent{Kind: Created, Entry: Directory, Path: m.Path}, true
	case MsgFolderDeleted:
		return ChangeEvent{Kind: Deleted, Entry: Directory, Path: m.Path}, true
	}
	return ChangeEvent{}, false
}

// Control reports whether m is a session control message and decodes it.
func (m Message) Control() (ControlMessage, bool) {
	switch m.Type {
	case MsgDisconnect:
		return ControlMessage{Kind: Disconnect}, true
	case MsgServerStopped:
		return ControlMessage{Kind: ServerStopped, Detail: m.Path}, true
	}
	return ControlMessage{}, false
}
