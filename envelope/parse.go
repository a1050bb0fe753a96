package envelope

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// itemHeaderWire is the JSON shape of one item-header line.
type itemHeaderWire struct {
	Type           string `json:"type"`
	Length         *int64 `json:"length"`
	ContentType    string `json:"content_type"`
	Filename       string `json:"filename"`
	AttachmentType string `json:"attachment_type"`
}

type headerWire struct {
	EventID    string `json:"event_id"`
	DSN        string `json:"dsn"`
	SentAt     string `json:"sent_at"`
	Sdk        struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"sdk"`
}

// ErrBadEnvelope reports a framing violation: header parse failure or an
// item-length mismatch.
type ErrBadEnvelope struct{ Reason string }

func (e *ErrBadEnvelope) Error() string { return "envelope: malformed: " + e.Reason }

// Parse decodes a newline-delimited framed envelope payload: a JSON
// header line, followed by repeated item-header/item-bytes line pairs
// (spec.md §6).
func Parse(r io.Reader, remoteAddr string) (*Envelope, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	headerLine, err := readLine(br)
	if err != nil {
		return nil, &ErrBadEnvelope{Reason: fmt.Sprintf("reading header: %v", err)}
	}
	var hw headerWire
	if err := json.Unmarshal(headerLine, &hw); err != nil {
		return nil, &ErrBadEnvelope{Reason: fmt.Sprintf("parsing header: %v", err)}
	}

	env := New(Header{
		EventID:          hw.EventID,
		DSN:              hw.DSN,
		SentAt:           hw.SentAt,
		RemoteAddr:       remoteAddr,
		ClientSDKName:    hw.Sdk.Name,
		ClientSDKVersion: hw.Sdk.Version,
	})

	for {
		itemHeaderLine, err := readLine(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ErrBadEnvelope{Reason: fmt.Sprintf("reading item header: %v", err)}
		}
		if len(itemHeaderLine) == 0 {
			continue
		}

		var iw itemHeaderWire
		if err := json.Unmarshal(itemHeaderLine, &iw); err != nil {
			return nil, &ErrBadEnvelope{Reason: fmt.Sprintf("parsing item header: %v", err)}
		}

		var payload []byte
		if iw.Length != nil {
			payload = make([]byte, *iw.Length)
			if _, err := io.ReadFull(br, payload); err != nil {
				return nil, &ErrBadEnvelope{Reason: fmt.Sprintf("reading item body (declared length %d): %v", *iw.Length, err)}
			}
			// consume the delimiter newline, if the payload didn't already end at EOF.
			if b, err := br.ReadByte(); err == nil && b != '\n' {
				return nil, &ErrBadEnvelope{Reason: "item length mismatch: expected newline after declared-length body"}
			}
		} else {
			payload, err = readLine(br)
			if err != nil && err != io.EOF {
				return nil, &ErrBadEnvelope{Reason: fmt.Sprintf("reading length-inferred item body: %v", err)}
			}
		}

		itemType := ItemType(iw.Type)
		item := &Item{
			Type:           itemType,
			ContentType:    iw.ContentType,
			Length:         int64(len(payload)),
			Filename:       iw.Filename,
			AttachmentType: iw.AttachmentType,
			Payload:        payload,
		}
		item.CreatesEvent = itemCreatesEvent(item)
		env.Add(item)
	}

	return env, nil
}

func itemCreatesEvent(item *Item) bool {
	switch item.Type {
	case ItemEvent, ItemTransaction, ItemSecurity, ItemRawSecurity, ItemUnrealReport:
		return true
	case ItemAttachment:
		return EventCreatingAttachmentTypes[item.AttachmentType]
	default:
		return false
	}
}

// readLine reads up to and excluding the next '\n', tolerating a
// preceding '\r'. Returns io.EOF only when no bytes at all were read.
func readLine(br *bufio.Reader) ([]byte, error) {
	line, err := br.ReadBytes('\n')
	if len(line) == 0 && err != nil {
		return nil, err
	}
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
		if n2 := len(line); n2 > 0 && line[n2-1] == '\r' {
			line = line[:n2-1]
		}
	}
	return line, nil
}
