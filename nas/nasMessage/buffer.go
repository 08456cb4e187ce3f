// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

package nasMessage

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrBufferTooShort            = errors.New("nas: buffer too short")
	ErrProtocolNotSupported      = errors.New("nas: protocol discriminator not supported")
	ErrMessageTypeNotImplemented = errors.New("nas: message type non-existent or not implemented")
	ErrInvalidMandatoryIe        = errors.New("nas: invalid mandatory information")
	ErrIeTooLong                 = errors.New("nas: information element too long")
)

// reader walks a NAS PDU octet by octet.
type reader struct {
	buf []byte
	off int
}

func newReader(b []byte) *reader {
	return &reader{buf: b}
}

func (r *reader) remaining() int {
	return len(r.buf) - r.off
}

func (r *reader) u8() (uint8, error) {
	if r.remaining() < 1 {
		return 0, ErrBufferTooShort
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if r.remaining() < 2 {
		return 0, ErrBufferTooShort
	}
	v := binary.BigEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, ErrBufferTooShort
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

// bytes returns a copy so decoded messages never alias the input buffer.
func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, ErrBufferTooShort
	}
	v := make([]byte, n)
	copy(v, r.buf[r.off:r.off+n])
	r.off += n
	return v, nil
}

func (r *reader) lv() ([]byte, error) {
	l, err := r.u8()
	if err != nil {
		return nil, err
	}
	return r.bytes(int(l))
}

func (r *reader) lve() ([]byte, error) {
	l, err := r.u16()
	if err != nil {
		return nil, err
	}
	return r.bytes(int(l))
}

// writer accumulates an encoded PDU.
type writer struct {
	buf []byte
}

func (w *writer) u8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *writer) u16(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

func (w *writer) u32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *writer) raw(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *writer) lv(b []byte) error {
	if len(b) > 0xff {
		return fmt.Errorf("%w: %d octets in LV", ErrIeTooLong, len(b))
	}
	w.u8(uint8(len(b)))
	w.raw(b)
	return nil
}

func (w *writer) lve(b []byte) error {
	if len(b) > 0xffff {
		return fmt.Errorf("%w: %d octets in LV-E", ErrIeTooLong, len(b))
	}
	w.u16(uint16(len(b)))
	w.raw(b)
	return nil
}

func (w *writer) tlv(iei uint8, b []byte) error {
	w.u8(iei)
	return w.lv(b)
}

func (w *writer) tlve(iei uint8, b []byte) error {
	w.u8(iei)
	return w.lve(b)
}

// OptionalIe keeps an optional IE the message struct does not model, so that
// a decoded message re-encodes to the same octets.
type OptionalIe struct {
	Iei   uint8
	Value []byte
}

// ieLayout describes, for one message, which optional IEIs are type 3 (TV with
// a fixed value length) and which are TLV-E. Everything else with the high bit
// clear is TLV; IEIs with the high bit set are type 1 half-octet TV.
type ieLayout struct {
	tv   map[uint8]int
	tlve map[uint8]bool
}

func isHalfOctetIei(iei uint8) bool {
	return iei&0x80 != 0
}

// readOptionals decodes the optional part of a message. consume is offered
// every IE first and returns false for IEs that should be kept as raw.
func (r *reader) readOptionals(layout ieLayout, consume func(iei uint8, v []byte) (bool, error)) ([]OptionalIe, error) {
	var others []OptionalIe
	for r.remaining() > 0 {
		first, err := r.u8()
		if err != nil {
			return nil, err
		}
		var iei uint8
		var value []byte
		switch {
		case isHalfOctetIei(first):
			iei = first & 0xf0
			value = []byte{first & 0x0f}
		case layout.tv[first] > 0:
			iei = first
			if value, err = r.bytes(layout.tv[first]); err != nil {
				return nil, err
			}
		case layout.tlve[first]:
			iei = first
			if value, err = r.lve(); err != nil {
				return nil, err
			}
		default:
			iei = first
			if value, err = r.lv(); err != nil {
				return nil, err
			}
		}
		ok, err := consume(iei, value)
		if err != nil {
			return nil, err
		}
		if !ok {
			others = append(others, OptionalIe{Iei: iei, Value: value})
		}
	}
	return others, nil
}

func (w *writer) optional(layout ieLayout, ie OptionalIe) error {
	switch {
	case isHalfOctetIei(ie.Iei):
		var v uint8
		if len(ie.Value) > 0 {
			v = ie.Value[0] & 0x0f
		}
		w.u8(ie.Iei&0xf0 | v)
	case layout.tv[ie.Iei] > 0:
		if len(ie.Value) != layout.tv[ie.Iei] {
			return fmt.Errorf("%w: IEI 0x%02x expects %d octets", ErrInvalidMandatoryIe, ie.Iei, layout.tv[ie.Iei])
		}
		w.u8(ie.Iei)
		w.raw(ie.Value)
	case layout.tlve[ie.Iei]:
		return w.tlve(ie.Iei, ie.Value)
	default:
		return w.tlv(ie.Iei, ie.Value)
	}
	return nil
}

func (w *writer) optionals(layout ieLayout, ies []OptionalIe) error {
	for _, ie := range ies {
		if err := w.optional(layout, ie); err != nil {
			return err
		}
	}
	return nil
}

func u8Ptr(v uint8) *uint8 {
	return &v
}
