package refresh

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const recordFormatVersionCurrent = 1

// Fixed layout of the blob head. The revocation header (revoked flag, reason,
// revokedAt) sits at constant offsets directly after the version byte so the
// store's Lua scripts can splice it without parsing the variable tail.
//
//	offset 0      version byte
//	offset 1      revoked flag (0/1)
//	offset 2      reason code
//	offset 3..10  revokedAt, int64 big-endian
//	offset 11..18 createdAt, int64 big-endian
//	offset 19..26 expiresAt, int64 big-endian
//	offset 27..58 token hash, 32 bytes
//	offset 59..   length-prefixed strings: id, accountID, familyID,
//	              device, userAgent, ip
const (
	revokedFlagOffset   = 1
	revocationHeaderLen = 10
)

func Encode(r *Record) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(recordFormatVersionCurrent)

	if r.Revoked {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	buf.WriteByte(byte(r.Reason))

	if err := binary.Write(&buf, binary.BigEndian, r.RevokedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.ExpiresAt); err != nil {
		return nil, err
	}

	buf.Write(r.TokenHash[:])

	for _, field := range []string{r.ID, r.AccountID, r.FamilyID, r.Device, r.UserAgent, r.IP} {
		if len(field) > 255 {
			return nil, errors.New("record field too long")
		}
		buf.WriteByte(byte(len(field)))
		buf.WriteString(field)
	}

	return buf.Bytes(), nil
}

func Decode(data []byte) (*Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != recordFormatVersionCurrent {
		return nil, errors.New("invalid record version")
	}

	r := &Record{}

	revoked, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	r.Revoked = revoked == 1

	reason, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	r.Reason = Reason(reason)

	if err := binary.Read(reader, binary.BigEndian, &r.RevokedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &r.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &r.ExpiresAt); err != nil {
		return nil, err
	}

	if _, err := io.ReadFull(reader, r.TokenHash[:]); err != nil {
		return nil, err
	}

	fields := []*string{&r.ID, &r.AccountID, &r.FamilyID, &r.Device, &r.UserAgent, &r.IP}
	for _, field := range fields {
		length, err := reader.ReadByte()
		if err != nil {
			return nil, err
		}
		value := make([]byte, length)
		if _, err := io.ReadFull(reader, value); err != nil {
			return nil, err
		}
		*field = string(value)
	}

	return r, nil
}

// revocationHeader builds the 10-byte splice written by the Lua scripts:
// revoked flag, reason code, revokedAt big-endian.
func revocationHeader(reason Reason, revokedAt int64) []byte {
	header := make([]byte, revocationHeaderLen)
	header[0] = 1
	header[1] = byte(reason)
	binary.BigEndian.PutUint64(header[2:], uint64(revokedAt))
	return header
}
