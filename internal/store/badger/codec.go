package badger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

// Record field numbers. Values are protobuf wire-compatible so the layout
// can later be described by a .proto without rewriting stored data.
const (
	fieldID        protowire.Number = 1
	fieldSender    protowire.Number = 2
	fieldReceiver  protowire.Number = 3
	fieldContent   protowire.Number = 4
	fieldCreatedAt protowire.Number = 5 // unix nanoseconds
	fieldSeq       protowire.Number = 6
)

var errCorruptRecord = errors.New("corrupt message record")

func encodeMessage(m domain.Message) []byte {
	b := make([]byte, 0, 64+len(m.Content))
	b = protowire.AppendTag(b, fieldID, protowire.BytesType)
	b = protowire.AppendBytes(b, m.ID[:])
	b = protowire.AppendTag(b, fieldSender, protowire.BytesType)
	b = protowire.AppendString(b, m.SenderID)
	b = protowire.AppendTag(b, fieldReceiver, protowire.BytesType)
	b = protowire.AppendString(b, m.ReceiverID)
	b = protowire.AppendTag(b, fieldContent, protowire.BytesType)
	b = protowire.AppendString(b, m.Content)
	b = protowire.AppendTag(b, fieldCreatedAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.CreatedAt.UnixNano()))
	b = protowire.AppendTag(b, fieldSeq, protowire.VarintType)
	b = protowire.AppendVarint(b, m.Seq)
	return b
}

func decodeMessage(b []byte) (domain.Message, error) {
	var m domain.Message
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return domain.Message{}, fmt.Errorf("%w: %v", errCorruptRecord, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldID && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return domain.Message{}, fmt.Errorf("%w: id", errCorruptRecord)
			}
			id, err := uuid.FromBytes(v)
			if err != nil {
				return domain.Message{}, fmt.Errorf("%w: id: %v", errCorruptRecord, err)
			}
			m.ID = id
			b = b[n:]
		case (num == fieldSender || num == fieldReceiver || num == fieldContent) && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return domain.Message{}, fmt.Errorf("%w: field %d", errCorruptRecord, num)
			}
			switch num {
			case fieldSender:
				m.SenderID = v
			case fieldReceiver:
				m.ReceiverID = v
			default:
				m.Content = v
			}
			b = b[n:]
		case (num == fieldCreatedAt || num == fieldSeq) && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return domain.Message{}, fmt.Errorf("%w: field %d", errCorruptRecord, num)
			}
			if num == fieldCreatedAt {
				m.CreatedAt = time.Unix(0, int64(v)).UTC()
			} else {
				m.Seq = v
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return domain.Message{}, fmt.Errorf("%w: field %d", errCorruptRecord, num)
			}
			b = b[n:]
		}
	}
	return m, nil
}
