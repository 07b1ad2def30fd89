package protocol

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestChangeEventMessage(t *testing.T) {
	tests := []struct {
		name  string
		event ChangeEvent
		want  Message
		text  string
	}{
		{
			name:  "file created",
			event: ChangeEvent{Kind: Created, Entry: File, Path: "/data/x.txt"},
			want:  Message{Type: MsgFileAdded, Path: "/data/x.txt"},
			text:  "File Added: /data/x.txt",
		},
		{
			name:  "file deleted",
			event: ChangeEvent{Kind: Deleted, Entry: File, Path: "/data/x.txt"},
			want:  Message{Type: MsgFileDeleted, Path: "/data/x.txt"},
			text:  "File Deleted: /data/x.txt",
		},
		{
			name:  "folder created",
			event: ChangeEvent{Kind: Created, Entry: Directory, Path: "/data/sub"},
			want:  Message{Type: MsgFolderAdded, Path: "/data/sub"},
			text:  "Folder Added: /data/sub",
		},
		{
			name:  "folder deleted",
			event: ChangeEvent{Kind: Deleted, Entry: Directory, Path: "/data/sub"},
			want:  Message{Type: MsgFolderDeleted, Path: "/data/sub"},
			text:  "Folder Deleted: /data/sub",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.event.Message()
			if got != tt.want {
				t.Errorf("Message() = %+v, want %+v", got, tt.want)
			}
			if s := tt.event.String(); s != tt.text {
				t.Errorf("String() = %q, want %q", s, tt.text)
			}

			frame, err := Encode(got)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			decoded, err := NewReader(bytes.NewReader(frame), 0).Next()
			if err != nil {
				t.Fatalf("Next: %v", err)
			}
			back, ok := decoded.ChangeEvent()
			if !ok {
				t.Fatalf("decoded %+v is not a change event", decoded)
			}
			if back != tt.event {
				t.Errorf("round trip = %+v, want %+v", back, tt.event)
			}
		})
	}
}

func TestEncodeWireFormat(t *testing.T) {
	frame, err := Encode(ChangeEvent{Kind: Created, Entry: File, Path: "/data/x.txt"}.Message())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got, want := string(frame), `{"type":"file_added","path":"/data/x.txt"}`+"\n"; got != want {
		t.Errorf("frame = %q, want %q", got, want)
	}

	frame, err = Encode(ControlMessage{Kind: Disconnect}.Message())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got, want := string(frame), `{"type":"disconnect"}`+"\n"; got != want {
		t.Errorf("frame = %q, want %q", got, want)
	}
}

func TestEncodeEscapesNewlines(t *testing.T) {
	frame, err := Encode(Message{Type: MsgFileAdded, Path: "/data/odd\nname"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if n := bytes.Count(frame, []byte("\n")); n != 1 {
		t.Fatalf("frame has %d raw newlines, want 1", n)
	}

	m, err := NewReader(bytes.NewReader(frame), 0).Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if m.Path != "/data/odd\nname" {
		t.Errorf("path = %q", m.Path)
	}
}

func TestControlMessage(t *testing.T) {
	stopped := ControlMessage{Kind: ServerStopped, Detail: "Server has been stopped."}
	m := stopped.Message()
	if m.Type != MsgServerStopped || m.Path != stopped.Detail {
		t.Fatalf("Message() = %+v", m)
	}
	got, ok := m.Control()
	if !ok || got != stopped {
		t.Errorf("Control() = %+v, %v", got, ok)
	}
	if _, ok := m.ChangeEvent(); ok {
		t.Error("server_stopped decoded as a change event")
	}

	if _, ok := (Message{Type: "file_renamed"}).Control(); ok {
		t.Error("unknown type decoded as control")
	}
	if _, ok := (Message{Type: "file_renamed"}).ChangeEvent(); ok {
		t.Error("unknown type decoded as change event")
	}
}

func TestReaderSplitsBurst(t *testing.T) {
	var buf bytes.Buffer
	for _, p := range []string{"/a", "/b", "/c"} {
		frame, err := Encode(Message{Type: MsgFileAdded, Path: p})
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		buf.Write(frame)
	}

	// One byte at a time forces every frame to span read boundaries.
	r := NewReader(io.MultiReader(oneByteReaders(buf.Bytes())...), 0)
	for _, want := range []string{"/a", "/b", "/c"} {
		m, err := r.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if m.Path != want {
			t.Errorf("path = %q, want %q", m.Path, want)
		}
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestReaderMalformedFrame(t *testing.T) {
	input := "not json\n\n{\"type\":\"disconnect\"}\n"
	r := NewReader(strings.NewReader(input), 0)

	if _, err := r.Next(); !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
	m, err := r.Next()
	if err != nil {
		t.Fatalf("Next after malformed frame: %v", err)
	}
	if m.Type != MsgDisconnect {
		t.Errorf("type = %q, want %q", m.Type, MsgDisconnect)
	}
}

func TestReaderFrameTooLarge(t *testing.T) {
	input := `{"type":"file_added","path":"` + strings.Repeat("x", 256) + "\"}\n"
	r := NewReader(strings.NewReader(input), 64)
	if _, err := r.Next(); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func oneByteReaders(data []byte) []io.Reader {
	readers := make([]io.Reader, len(data))
	for i := range data {
		readers[i] = bytes.NewReader(data[i : i+1])
	}
	return readers
}

func TestReaderFrameAtLimit(t *testing.T) {
	line := `{"type":"file_added","path":"/data/` + strings.Repeat("x", 60) + `"}`
	r := NewReader(strings.NewReader(line+"\n"), len(line))
	m, err := r.Next()
	if err != nil {
		t.Fatalf("frame of exactly the limit rejected: %v", err)
	}
	if m.Type != MsgFileAdded {
		t.Errorf("type = %q", m.Type)
	}

	r = NewReader(strings.NewReader(line+"\n"), len(line)-1)
	if _, err := r.Next(); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge one byte over the limit, got %v", err)
	}
}

func TestNonUTF8PathRoundTrip(t *testing.T) {
	path := "/data/\xff\xfe.txt"
	frame, err := Encode(ChangeEvent{Kind: Created, Entry: File, Path: path}.Message())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Contains(frame, []byte(`"path_bytes":`)) {
		t.Errorf("frame %q lacks the exact path bytes", frame)
	}
	if !bytes.Contains(frame, []byte(`"path":"/data/`)) {
		t.Errorf("frame %q lacks the readable path", frame)
	}

	m, err := NewReader(bytes.NewReader(frame), 0).Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	ev, ok := m.ChangeEvent()
	if !ok {
		t.Fatalf("decoded %+v is not a change event", m)
	}
	if ev.Path != path {
		t.Errorf("path = %q, want %q", ev.Path, path)
	}
}

func TestValidPathHasNoPathBytes(t *testing.T) {
	frame, err := Encode(Message{Type: MsgFileDeleted, Path: "/data/naïve.txt"})
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"type":"file_deleted","path":"/data/naïve.txt"}` + "\n"; string(frame) != want {
		t.Errorf("frame = %q, want %q", frame, want)
	}
}
