// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

package context

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/mohae/deepcopy"
	"github.com/omec-project/mme/nas/nasMessage"
	"github.com/omec-project/nas/security"
	"github.com/omec-project/util/ueauth"
)

// KDF function codes from TS 33.401 Annex A.
const (
	fcForKenbDerivation         = "11"
	fcForAlgorithmKeyDerivation = "15"
)

type SecurityContextType uint8

const (
	SecurityContextNotAvailable SecurityContextType = iota
	SecurityContextNative
	SecurityContextMapped
)

func (t SecurityContextType) String() string {
	switch t {
	case SecurityContextNative:
		return "native"
	case SecurityContextMapped:
		return "mapped"
	default:
		return "not-available"
	}
}

// NasCount is a NAS COUNT that survives JSON encoding.
type NasCount struct {
	security.Count
}

func (c NasCount) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Get())
}

func (c *NasCount) UnmarshalJSON(b []byte) error {
	var v uint32
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	c.Set(uint16(v>>8), uint8(v))
	return nil
}

type SelectedAlgorithms struct {
	Encryption uint8 `json:"encryption"`
	Integrity  uint8 `json:"integrity"`
}

// AuthVector is one E-UTRAN authentication vector received from the HSS.
type AuthVector struct {
	Rand  [16]byte `json:"rand"`
	Xres  []byte   `json:"xres"`
	Autn  []byte   `json:"autn"`
	Kasme []byte   `json:"kasme"`
}

// SecurityContext is an EPS NAS security context (TS 33.401 7.2.9).
type SecurityContext struct {
	Type SecurityContextType `json:"type"`
	Eksi uint8               `json:"eksi"`

	Kasme   []byte    `json:"kasme,omitempty"`
	KnasEnc [16]uint8 `json:"knasEnc"`
	KnasInt [16]uint8 `json:"knasInt"`
	Kenb    []byte    `json:"kenb,omitempty"`

	ULCount NasCount `json:"ulCount"`
	DLCount NasCount `json:"dlCount"`
	// uplink COUNT used as KDF input for the last KeNB
	KenbULCount NasCount `json:"kenbUlCount"`

	SelectedAlgorithms SelectedAlgorithms `json:"selectedAlgorithms"`
	KeysDerived        bool               `json:"keysDerived"`
	Activated          bool               `json:"activated"`

	DirectionEncode uint8 `json:"directionEncode"`
	DirectionDecode uint8 `json:"directionDecode"`

	Vector *AuthVector `json:"vector,omitempty"`
}

// NewSecurityContext creates a native context from an authentication vector.
// The MME encodes downlink and decodes uplink.
func NewSecurityContext(eksi uint8, vector *AuthVector) *SecurityContext {
	sc := &SecurityContext{
		Type:            SecurityContextNative,
		Eksi:            eksi,
		DirectionEncode: security.DirectionDownlink,
		DirectionDecode: security.DirectionUplink,
		Vector:          vector,
	}
	if vector != nil {
		sc.Kasme = append([]byte(nil), vector.Kasme...)
	}
	return sc
}

// Available reports whether the context can protect messages.
func (sc *SecurityContext) Available() bool {
	return sc != nil && sc.Type != SecurityContextNotAvailable &&
		sc.Eksi != nasMessage.NasKeySetIdentifierNoKeyAvailable
}

// HasIntegrityKey reports whether KNASint has been derived.
func (sc *SecurityContext) HasIntegrityKey() bool {
	return sc.Available() && sc.KeysDerived
}

// HasCipheringKey reports whether ciphering is in effect for this context.
func (sc *SecurityContext) HasCipheringKey() bool {
	return sc.HasIntegrityKey() && sc.SelectedAlgorithms.Encryption != security.AlgCiphering128NEA0
}

// Clone returns a deep copy of the context.
func (sc *SecurityContext) Clone() *SecurityContext {
	cp := deepcopy.Copy(sc).(*SecurityContext)
	// deepcopy skips the unexported COUNT values
	cp.ULCount, cp.DLCount, cp.KenbULCount = sc.ULCount, sc.DLCount, sc.KenbULCount
	return cp
}

// ResetCounts sets both NAS COUNTs to zero, as done when a new context is taken into use.
func (sc *SecurityContext) ResetCounts() {
	sc.ULCount.Set(0, 0)
	sc.DLCount.Set(0, 0)
}

// SelectAlgorithms picks the first configured algorithm the UE supports.
// EEA0 and EIA0 are chosen only if listed in the configured order.
func (sc *SecurityContext) SelectAlgorithms(ueCap nasMessage.UeNetworkCapability,
	cipheringOrder, integrityOrder []uint8,
) error {
	integrity, ok := firstSupported(integrityOrder, ueCap.SupportsEia)
	if !ok {
		return fmt.Errorf("no common integrity algorithm")
	}
	encryption, ok := firstSupported(cipheringOrder, ueCap.SupportsEea)
	if !ok {
		return fmt.Errorf("no common ciphering algorithm")
	}
	sc.SelectedAlgorithms = SelectedAlgorithms{Encryption: encryption, Integrity: integrity}
	return nil
}

func firstSupported(order []uint8, supported func(uint8) bool) (uint8, bool) {
	for _, alg := range order {
		if supported(alg) {
			return alg, true
		}
	}
	return 0, false
}

// DeriveNasKeys derives KNASenc and KNASint from KASME (TS 33.401 Annex A.7).
func (sc *SecurityContext) DeriveNasKeys() error {
	if len(sc.Kasme) != 32 {
		return fmt.Errorf("kasme length %d", len(sc.Kasme))
	}
	kenc, err := algorithmKey(sc.Kasme, security.NNASEncAlg, sc.SelectedAlgorithms.Encryption)
	if err != nil {
		return fmt.Errorf("derive KNASenc: %w", err)
	}
	kint, err := algorithmKey(sc.Kasme, security.NNASIntAlg, sc.SelectedAlgorithms.Integrity)
	if err != nil {
		return fmt.Errorf("derive KNASint: %w", err)
	}
	copy(sc.KnasEnc[:], kenc[16:32])
	copy(sc.KnasInt[:], kint[16:32])
	sc.KeysDerived = true
	return nil
}

func algorithmKey(kasme []byte, distinguisher, alg uint8) ([]byte, error) {
	P0 := []byte{distinguisher}
	L0 := ueauth.KDFLen(P0)
	P1 := []byte{alg}
	L1 := ueauth.KDFLen(P1)
	return ueauth.GetKDFValue(kasme, fcForAlgorithmKeyDerivation, P0, L0, P1, L1)
}

// DeriveKenb derives KeNB from KASME and the current uplink COUNT
// (TS 33.401 Annex A.3) and remembers the COUNT it used.
func (sc *SecurityContext) DeriveKenb() error {
	if len(sc.Kasme) != 32 {
		return fmt.Errorf("kasme length %d", len(sc.Kasme))
	}
	P0 := make([]byte, 4)
	binary.BigEndian.PutUint32(P0, sc.ULCount.Get())
	L0 := ueauth.KDFLen(P0)
	key, err := ueauth.GetKDFValue(sc.Kasme, fcForKenbDerivation, P0, L0)
	if err != nil {
		return fmt.Errorf("derive KeNB: %w", err)
	}
	sc.Kenb = key
	sc.KenbULCount = sc.ULCount
	return nil
}
