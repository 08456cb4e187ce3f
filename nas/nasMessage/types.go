// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

package nasMessage

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// PlmnId as carried in GUTI, TAI and LAI (TS 24.008 10.5.1.3).
type PlmnId struct {
	Mcc string `json:"mcc" bson:"mcc"`
	Mnc string `json:"mnc" bson:"mnc"`
}

func (p PlmnId) String() string {
	return p.Mcc + p.Mnc
}

func digit(s string, i int) uint8 {
	if i >= len(s) {
		return 0x0f
	}
	return s[i] - '0'
}

func validDigits(s string, min, max int) bool {
	if len(s) < min || len(s) > max {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func (p PlmnId) Encode() ([3]byte, error) {
	var b [3]byte
	if !validDigits(p.Mcc, 3, 3) || !validDigits(p.Mnc, 2, 3) {
		return b, fmt.Errorf("%w: plmn %s/%s", ErrInvalidMandatoryIe, p.Mcc, p.Mnc)
	}
	b[0] = digit(p.Mcc, 1)<<4 | digit(p.Mcc, 0)
	b[1] = digit(p.Mnc, 2)<<4 | digit(p.Mcc, 2)
	b[2] = digit(p.Mnc, 1)<<4 | digit(p.Mnc, 0)
	return b, nil
}

func DecodePlmnId(b []byte) (PlmnId, error) {
	if len(b) < 3 {
		return PlmnId{}, ErrBufferTooShort
	}
	var sb strings.Builder
	for _, d := range []uint8{b[0] & 0x0f, b[0] >> 4, b[1] & 0x0f} {
		if d > 9 {
			return PlmnId{}, fmt.Errorf("%w: mcc digit 0x%x", ErrInvalidMandatoryIe, d)
		}
		sb.WriteByte('0' + d)
	}
	mcc := sb.String()
	sb.Reset()
	for _, d := range []uint8{b[2] & 0x0f, b[2] >> 4, b[1] >> 4} {
		if d == 0x0f {
			break
		}
		if d > 9 {
			return PlmnId{}, fmt.Errorf("%w: mnc digit 0x%x", ErrInvalidMandatoryIe, d)
		}
		sb.WriteByte('0' + d)
	}
	return PlmnId{Mcc: mcc, Mnc: sb.String()}, nil
}

// Tai is a tracking area identity (9.9.3.32).
type Tai struct {
	PlmnId PlmnId `json:"plmnId" bson:"plmnId"`
	Tac    uint16 `json:"tac" bson:"tac"`
}

func (t Tai) Encode() ([]byte, error) {
	plmn, err := t.PlmnId.Encode()
	if err != nil {
		return nil, err
	}
	return binary.BigEndian.AppendUint16(plmn[:], t.Tac), nil
}

func DecodeTai(b []byte) (Tai, error) {
	if len(b) < 5 {
		return Tai{}, ErrBufferTooShort
	}
	plmn, err := DecodePlmnId(b)
	if err != nil {
		return Tai{}, err
	}
	return Tai{PlmnId: plmn, Tac: binary.BigEndian.Uint16(b[3:])}, nil
}

// TaiList (9.9.3.33). Encoded as one type 0 partial list per PLMN.
type TaiList []Tai

func (l TaiList) Encode() ([]byte, error) {
	if len(l) == 0 || len(l) > 16 {
		return nil, fmt.Errorf("%w: tai list with %d entries", ErrInvalidMandatoryIe, len(l))
	}
	var out []byte
	var order []PlmnId
	groups := make(map[PlmnId][]uint16)
	for _, tai := range l {
		if _, ok := groups[tai.PlmnId]; !ok {
			order = append(order, tai.PlmnId)
		}
		groups[tai.PlmnId] = append(groups[tai.PlmnId], tai.Tac)
	}
	for _, plmn := range order {
		tacs := groups[plmn]
		enc, err := plmn.Encode()
		if err != nil {
			return nil, err
		}
		out = append(out, uint8(len(tacs)-1)&0x1f)
		out = append(out, enc[:]...)
		for _, tac := range tacs {
			out = binary.BigEndian.AppendUint16(out, tac)
		}
	}
	return out, nil
}

func DecodeTaiList(b []byte) (TaiList, error) {
	var list TaiList
	r := newReader(b)
	for r.remaining() > 0 {
		head, _ := r.u8()
		listType := (head >> 5) & 0x03
		n := int(head&0x1f) + 1
		switch listType {
		case 0, 1:
			raw, err := r.bytes(3)
			if err != nil {
				return nil, err
			}
			plmn, err := DecodePlmnId(raw)
			if err != nil {
				return nil, err
			}
			if listType == 0 {
				for i := 0; i < n; i++ {
					tac, err := r.u16()
					if err != nil {
						return nil, err
					}
					list = append(list, Tai{PlmnId: plmn, Tac: tac})
				}
			} else {
				tac, err := r.u16()
				if err != nil {
					return nil, err
				}
				for i := 0; i < n; i++ {
					list = append(list, Tai{PlmnId: plmn, Tac: tac + uint16(i)})
				}
			}
		case 2:
			for i := 0; i < n; i++ {
				raw, err := r.bytes(5)
				if err != nil {
					return nil, err
				}
				tai, err := DecodeTai(raw)
				if err != nil {
					return nil, err
				}
				list = append(list, tai)
			}
		default:
			return nil, fmt.Errorf("%w: tai list type %d", ErrInvalidMandatoryIe, listType)
		}
	}
	return list, nil
}

// Guti is the globally unique temporary identity (9.9.3.12).
type Guti struct {
	PlmnId     PlmnId `json:"plmnId" bson:"plmnId"`
	MmeGroupId uint16 `json:"mmeGroupId" bson:"mmeGroupId"`
	MmeCode    uint8  `json:"mmeCode" bson:"mmeCode"`
	MTmsi      uint32 `json:"mTmsi" bson:"mTmsi"`
}

func (g Guti) String() string {
	return fmt.Sprintf("%s%04x%02x%08x", g.PlmnId, g.MmeGroupId, g.MmeCode, g.MTmsi)
}

// NasKeySetIdentifier (9.9.3.21).
type NasKeySetIdentifier struct {
	Tsc uint8 `json:"tsc"`
	Ksi uint8 `json:"ksi"`
}

func (k NasKeySetIdentifier) Octet() uint8 {
	return (k.Tsc&0x01)<<3 | k.Ksi&0x07
}

func NasKeySetIdentifierFromOctet(v uint8) NasKeySetIdentifier {
	return NasKeySetIdentifier{Tsc: (v >> 3) & 0x01, Ksi: v & 0x07}
}

// MobileIdentity covers both the EPS mobile identity (9.9.3.12) and the
// TS 24.008 mobile identity used by identity response and SMC complete.
// Digits holds IMSI, IMEI or IMEISV digits; Guti and Tmsi the temporary ones.
type MobileIdentity struct {
	Type   uint8  `json:"type"`
	Digits string `json:"digits,omitempty"`
	Guti   *Guti  `json:"guti,omitempty"`
	Tmsi   uint32 `json:"tmsi,omitempty"`
}

func NewImsiIdentity(imsi string) MobileIdentity {
	return MobileIdentity{Type: MobileIdentityTypeImsi, Digits: imsi}
}

func NewGutiIdentity(guti Guti) MobileIdentity {
	return MobileIdentity{Type: EpsMobileIdentityTypeGuti, Guti: &guti}
}

func NewTmsiIdentity(tmsi uint32) MobileIdentity {
	return MobileIdentity{Type: MobileIdentityTypeTmsi, Tmsi: tmsi}
}

// Encode produces the value part; eps selects EPS mobile identity numbering.
func (m MobileIdentity) Encode(eps bool) ([]byte, error) {
	switch m.Type {
	case EpsMobileIdentityTypeGuti:
		if m.Guti == nil {
			return nil, fmt.Errorf("%w: guti identity without guti", ErrInvalidMandatoryIe)
		}
		plmn, err := m.Guti.PlmnId.Encode()
		if err != nil {
			return nil, err
		}
		out := []byte{0xf0 | EpsMobileIdentityTypeGuti}
		out = append(out, plmn[:]...)
		out = binary.BigEndian.AppendUint16(out, m.Guti.MmeGroupId)
		out = append(out, m.Guti.MmeCode)
		return binary.BigEndian.AppendUint32(out, m.Guti.MTmsi), nil
	case MobileIdentityTypeTmsi:
		return binary.BigEndian.AppendUint32([]byte{0xf0 | MobileIdentityTypeTmsi}, m.Tmsi), nil
	case MobileIdentityTypeImsi, MobileIdentityTypeImei, MobileIdentityTypeImeisv:
		if !validDigits(m.Digits, 1, 16) {
			return nil, fmt.Errorf("%w: identity digits %q", ErrInvalidMandatoryIe, m.Digits)
		}
		idType := m.Type
		if eps && idType == MobileIdentityTypeImei {
			idType = EpsMobileIdentityTypeImei
		}
		odd := uint8(len(m.Digits) % 2)
		out := []byte{digit(m.Digits, 0)<<4 | odd<<3 | idType}
		for i := 1; i < len(m.Digits); i += 2 {
			out = append(out, digit(m.Digits, i+1)<<4|digit(m.Digits, i))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: identity type %d", ErrInvalidMandatoryIe, m.Type)
	}
}

// DecodeMobileIdentity parses the value part of an (EPS) mobile identity.
// eps selects the EPS mobile identity numbering where 3 is IMEI.
func DecodeMobileIdentity(b []byte, eps bool) (MobileIdentity, error) {
	if len(b) < 1 {
		return MobileIdentity{}, ErrBufferTooShort
	}
	idType := b[0] & 0x07
	switch {
	case idType == EpsMobileIdentityTypeGuti && eps:
		if len(b) < 11 {
			return MobileIdentity{}, ErrBufferTooShort
		}
		plmn, err := DecodePlmnId(b[1:4])
		if err != nil {
			return MobileIdentity{}, err
		}
		return NewGutiIdentity(Guti{
			PlmnId:     plmn,
			MmeGroupId: binary.BigEndian.Uint16(b[4:6]),
			MmeCode:    b[6],
			MTmsi:      binary.BigEndian.Uint32(b[7:11]),
		}), nil
	case idType == MobileIdentityTypeTmsi && !eps:
		if len(b) < 5 {
			return MobileIdentity{}, ErrBufferTooShort
		}
		return NewTmsiIdentity(binary.BigEndian.Uint32(b[1:5])), nil
	case idType == MobileIdentityTypeImsi,
		idType == MobileIdentityTypeImei && !eps,
		idType == MobileIdentityTypeImeisv:
		if eps && idType == EpsMobileIdentityTypeImei {
			idType = MobileIdentityTypeImei
		}
		var sb strings.Builder
		sb.WriteByte('0' + (b[0] >> 4))
		for _, o := range b[1:] {
			sb.WriteByte('0' + (o & 0x0f))
			if o>>4 != 0x0f {
				sb.WriteByte('0' + (o >> 4))
			}
		}
		digits := sb.String()
		if !validDigits(digits, 1, 16) {
			return MobileIdentity{}, fmt.Errorf("%w: identity digits", ErrInvalidMandatoryIe)
		}
		return MobileIdentity{Type: idType, Digits: digits}, nil
	default:
		return MobileIdentity{}, fmt.Errorf("%w: identity type %d", ErrInvalidMandatoryIe, idType)
	}
}

// UeNetworkCapability (9.9.3.34) is kept opaque apart from the algorithm bits.
type UeNetworkCapability []byte

func (c UeNetworkCapability) SupportsEea(alg uint8) bool {
	return len(c) >= 1 && alg < 8 && c[0]&(0x80>>alg) != 0
}

func (c UeNetworkCapability) SupportsEia(alg uint8) bool {
	return len(c) >= 2 && alg < 8 && c[1]&(0x80>>alg) != 0
}

// ReplayedSecurityCapabilities builds the UE security capability IE (9.9.3.36)
// replayed in security mode command.
func (c UeNetworkCapability) ReplayedSecurityCapabilities() []byte {
	n := len(c)
	if n > 4 {
		n = 4
	}
	out := make([]byte, n)
	copy(out, c[:n])
	return out
}
