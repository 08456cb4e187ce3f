// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

package nasMessage

import (
	"fmt"
)

type emmBody struct{}

func (emmBody) ProtocolDiscriminator() uint8 { return ProtocolDiscriminatorEMM }

func decodeGuti(v []byte) (*Guti, error) {
	id, err := DecodeMobileIdentity(v, true)
	if err != nil {
		return nil, err
	}
	if id.Guti == nil {
		return nil, fmt.Errorf("%w: expected guti, got type %d", ErrInvalidMandatoryIe, id.Type)
	}
	return id.Guti, nil
}

func encodeGuti(w *writer, iei uint8, g *Guti) error {
	if g == nil {
		return nil
	}
	v, err := NewGutiIdentity(*g).Encode(true)
	if err != nil {
		return err
	}
	return w.tlv(iei, v)
}

func decodeTaiValue(v []byte) (*Tai, error) {
	tai, err := DecodeTai(v)
	if err != nil {
		return nil, err
	}
	return &tai, nil
}

func encodeTaiTv(w *writer, iei uint8, t *Tai) error {
	if t == nil {
		return nil
	}
	v, err := t.Encode()
	if err != nil {
		return err
	}
	w.u8(iei)
	w.raw(v)
	return nil
}

func encodeU8Tv(w *writer, iei uint8, v *uint8) {
	if v != nil {
		w.u8(iei)
		w.u8(*v)
	}
}

func encodeHalf(w *writer, iei uint8, v *uint8) {
	if v != nil {
		w.u8(iei&0xf0 | *v&0x0f)
	}
}

func encodeOptTlv(w *writer, iei uint8, v []byte) error {
	if v == nil {
		return nil
	}
	return w.tlv(iei, v)
}

// 8.2.4 Attach request
type AttachRequest struct {
	emmBody
	NasKeySetIdentifier      NasKeySetIdentifier
	EpsAttachType            uint8
	EpsMobileIdentity        MobileIdentity
	UeNetworkCapability      UeNetworkCapability
	EsmMessageContainer      []byte
	LastVisitedRegisteredTai *Tai
	DrxParameter             []byte
	MsNetworkCapability      []byte
	TmsiStatus               *uint8
	AdditionalUpdateType     *uint8
	VoiceDomainPreference    []byte
	OldGutiType              *uint8
	Others                   []OptionalIe
}

var attachRequestLayout = ieLayout{
	tv: map[uint8]int{IeiOldPtmsiSignature: 3, IeiLastVisitedRegisteredTai: 5, IeiDrxParameter: 2, IeiOldLai: 5},
}

func (*AttachRequest) MessageType() uint8 { return MsgTypeAttachRequest }

func (m *AttachRequest) encodeBody(w *writer) error {
	w.u8(m.NasKeySetIdentifier.Octet()<<4 | m.EpsAttachType&0x07)
	id, err := m.EpsMobileIdentity.Encode(true)
	if err != nil {
		return err
	}
	if err = w.lv(id); err != nil {
		return err
	}
	if err = w.lv(m.UeNetworkCapability); err != nil {
		return err
	}
	if err = w.lve(m.EsmMessageContainer); err != nil {
		return err
	}
	if err = encodeTaiTv(w, IeiLastVisitedRegisteredTai, m.LastVisitedRegisteredTai); err != nil {
		return err
	}
	if m.DrxParameter != nil {
		if err = w.optional(attachRequestLayout, OptionalIe{Iei: IeiDrxParameter, Value: m.DrxParameter}); err != nil {
			return err
		}
	}
	if err = encodeOptTlv(w, IeiMsNetworkCapability, m.MsNetworkCapability); err != nil {
		return err
	}
	encodeHalf(w, IeiTmsiStatus, m.TmsiStatus)
	encodeHalf(w, IeiAdditionalUpdateType, m.AdditionalUpdateType)
	if err = encodeOptTlv(w, IeiVoiceDomainPreference, m.VoiceDomainPreference); err != nil {
		return err
	}
	encodeHalf(w, IeiOldGutiType, m.OldGutiType)
	return w.optionals(attachRequestLayout, m.Others)
}

func (m *AttachRequest) decodeBody(r *reader) error {
	v, err := r.u8()
	if err != nil {
		return err
	}
	m.NasKeySetIdentifier = NasKeySetIdentifierFromOctet(v >> 4)
	m.EpsAttachType = v & 0x07
	raw, err := r.lv()
	if err != nil {
		return err
	}
	if m.EpsMobileIdentity, err = DecodeMobileIdentity(raw, true); err != nil {
		return err
	}
	if m.UeNetworkCapability, err = r.lv(); err != nil {
		return err
	}
	if len(m.UeNetworkCapability) < 2 {
		return fmt.Errorf("%w: ue network capability", ErrInvalidMandatoryIe)
	}
	if m.EsmMessageContainer, err = r.lve(); err != nil {
		return err
	}
	m.Others, err = r.readOptionals(attachRequestLayout, func(iei uint8, v []byte) (bool, error) {
		var err error
		switch iei {
		case IeiLastVisitedRegisteredTai:
			m.LastVisitedRegisteredTai, err = decodeTaiValue(v)
		case IeiDrxParameter:
			m.DrxParameter = v
		case IeiMsNetworkCapability:
			m.MsNetworkCapability = v
		case IeiTmsiStatus:
			m.TmsiStatus = u8Ptr(v[0])
		case IeiAdditionalUpdateType:
			m.AdditionalUpdateType = u8Ptr(v[0])
		case IeiVoiceDomainPreference:
			m.VoiceDomainPreference = v
		case IeiOldGutiType:
			m.OldGutiType = u8Ptr(v[0])
		default:
			return false, nil
		}
		return true, err
	})
	return err
}

// 8.2.1 Attach accept
type AttachAccept struct {
	emmBody
	EpsAttachResult          uint8
	T3412Value               uint8
	TaiList                  TaiList
	EsmMessageContainer      []byte
	Guti                     *Guti
	EmmCause                 *uint8
	T3402Value               *uint8
	T3423Value               *uint8
	EquivalentPlmns          []byte
	EpsNetworkFeatureSupport []byte
	AdditionalUpdateResult   *uint8
	Others                   []OptionalIe
}

var attachAcceptLayout = ieLayout{
	tv: map[uint8]int{IeiLai: 5, IeiEmmCause: 1, IeiT3402Value: 1, IeiT3423Value: 1},
}

func (*AttachAccept) MessageType() uint8 { return MsgTypeAttachAccept }

func (m *AttachAccept) encodeBody(w *writer) error {
	w.u8(m.EpsAttachResult & 0x07)
	w.u8(m.T3412Value)
	tais, err := m.TaiList.Encode()
	if err != nil {
		return err
	}
	if err = w.lv(tais); err != nil {
		return err
	}
	if err = w.lve(m.EsmMessageContainer); err != nil {
		return err
	}
	if err = encodeGuti(w, IeiGuti, m.Guti); err != nil {
		return err
	}
	encodeU8Tv(w, IeiEmmCause, m.EmmCause)
	encodeU8Tv(w, IeiT3402Value, m.T3402Value)
	encodeU8Tv(w, IeiT3423Value, m.T3423Value)
	if err = encodeOptTlv(w, IeiEquivalentPlmns, m.EquivalentPlmns); err != nil {
		return err
	}
	if err = encodeOptTlv(w, IeiEpsNetworkFeatureSupport, m.EpsNetworkFeatureSupport); err != nil {
		return err
	}
	encodeHalf(w, IeiAdditionalUpdateResult, m.AdditionalUpdateResult)
	return w.optionals(attachAcceptLayout, m.Others)
}

func (m *AttachAccept) decodeBody(r *reader) error {
	v, err := r.u8()
	if err != nil {
		return err
	}
	m.EpsAttachResult = v & 0x07
	if m.T3412Value, err = r.u8(); err != nil {
		return err
	}
	raw, err := r.lv()
	if err != nil {
		return err
	}
	if m.TaiList, err = DecodeTaiList(raw); err != nil {
		return err
	}
	if m.EsmMessageContainer, err = r.lve(); err != nil {
		return err
	}
	m.Others, err = r.readOptionals(attachAcceptLayout, func(iei uint8, v []byte) (bool, error) {
		var err error
		switch iei {
		case IeiGuti:
			m.Guti, err = decodeGuti(v)
		case IeiEmmCause:
			m.EmmCause = u8Ptr(v[0])
		case IeiT3402Value:
			m.T3402Value = u8Ptr(v[0])
		case IeiT3423Value:
			m.T3423Value = u8Ptr(v[0])
		case IeiEquivalentPlmns:
			m.EquivalentPlmns = v
		case IeiEpsNetworkFeatureSupport:
			m.EpsNetworkFeatureSupport = v
		case IeiAdditionalUpdateResult:
			m.AdditionalUpdateResult = u8Ptr(v[0])
		default:
			return false, nil
		}
		return true, err
	})
	return err
}

// 8.2.2 Attach complete
type AttachComplete struct {
	emmBody
	EsmMessageContainer []byte
}

func (*AttachComplete) MessageType() uint8 { return MsgTypeAttachComplete }

func (m *AttachComplete) encodeBody(w *writer) error {
	return w.lve(m.EsmMessageContainer)
}

func (m *AttachComplete) decodeBody(r *reader) (err error) {
	m.EsmMessageContainer, err = r.lve()
	return err
}

// 8.2.3 Attach reject
type AttachReject struct {
	emmBody
	EmmCause            uint8
	EsmMessageContainer []byte
	Others              []OptionalIe
}

var attachRejectLayout = ieLayout{
	tlve: map[uint8]bool{IeiEsmMessageContainer: true},
}

func (*AttachReject) MessageType() uint8 { return MsgTypeAttachReject }

func (m *AttachReject) encodeBody(w *writer) error {
	w.u8(m.EmmCause)
	if m.EsmMessageContainer != nil {
		if err := w.tlve(IeiEsmMessageContainer, m.EsmMessageContainer); err != nil {
			return err
		}
	}
	return w.optionals(attachRejectLayout, m.Others)
}

func (m *AttachReject) decodeBody(r *reader) (err error) {
	if m.EmmCause, err = r.u8(); err != nil {
		return err
	}
	m.Others, err = r.readOptionals(attachRejectLayout, func(iei uint8, v []byte) (bool, error) {
		if iei == IeiEsmMessageContainer {
			m.EsmMessageContainer = v
			return true, nil
		}
		return false, nil
	})
	return err
}

// 8.2.11 Detach request. The UE originating form carries the key set
// identifier and the EPS mobile identity; the UE terminated form carries an
// optional EMM cause. DetachType includes the switch off bit.
type DetachRequest struct {
	emmBody
	UeTerminated        bool
	DetachType          uint8
	NasKeySetIdentifier NasKeySetIdentifier
	EpsMobileIdentity   MobileIdentity
	EmmCause            *uint8
}

var detachRequestLayout = ieLayout{
	tv: map[uint8]int{IeiEmmCause: 1},
}

func (*DetachRequest) MessageType() uint8 { return MsgTypeDetachRequest }

func (m *DetachRequest) SwitchOff() bool {
	return !m.UeTerminated && m.DetachType&DetachTypeSwitchOff != 0
}

func (m *DetachRequest) encodeBody(w *writer) error {
	if m.UeTerminated {
		w.u8(m.DetachType & 0x07)
		encodeU8Tv(w, IeiEmmCause, m.EmmCause)
		return nil
	}
	w.u8(m.NasKeySetIdentifier.Octet()<<4 | m.DetachType&0x0f)
	id, err := m.EpsMobileIdentity.Encode(true)
	if err != nil {
		return err
	}
	return w.lv(id)
}

func (m *DetachRequest) decodeBody(r *reader) error {
	v, err := r.u8()
	if err != nil {
		return err
	}
	m.NasKeySetIdentifier = NasKeySetIdentifierFromOctet(v >> 4)
	m.DetachType = v & 0x0f
	raw, err := r.lv()
	if err != nil {
		return err
	}
	m.EpsMobileIdentity, err = DecodeMobileIdentity(raw, true)
	return err
}

// 8.2.9 / 8.2.10 Detach accept
type DetachAccept struct {
	emmBody
}

func (*DetachAccept) MessageType() uint8         { return MsgTypeDetachAccept }
func (*DetachAccept) encodeBody(w *writer) error { return nil }
func (*DetachAccept) decodeBody(r *reader) error { return nil }

// 8.2.29 Tracking area update request
type TrackingAreaUpdateRequest struct {
	emmBody
	NasKeySetIdentifier      NasKeySetIdentifier
	EpsUpdateType            uint8
	OldGuti                  MobileIdentity
	NonCurrentNativeKsi      *uint8
	UeNetworkCapability      UeNetworkCapability
	LastVisitedRegisteredTai *Tai
	DrxParameter             []byte
	EpsBearerContextStatus   []byte
	MsNetworkCapability      []byte
	TmsiStatus               *uint8
	AdditionalUpdateType     *uint8
	VoiceDomainPreference    []byte
	OldGutiType              *uint8
	Others                   []OptionalIe
}

var tauRequestLayout = ieLayout{
	tv: map[uint8]int{
		IeiOldPtmsiSignature: 3, IeiNonceUe: 4, IeiLastVisitedRegisteredTai: 5,
		IeiDrxParameter: 2, IeiOldLai: 5,
	},
}

func (*TrackingAreaUpdateRequest) MessageType() uint8 { return MsgTypeTrackingAreaUpdateRequest }

// ActiveFlag reports whether the UE asked to keep the user plane up.
func (m *TrackingAreaUpdateRequest) ActiveFlag() bool {
	return m.EpsUpdateType&EpsUpdateTypeActiveFlag != 0
}

func (m *TrackingAreaUpdateRequest) encodeBody(w *writer) error {
	w.u8(m.NasKeySetIdentifier.Octet()<<4 | m.EpsUpdateType&0x0f)
	id, err := m.OldGuti.Encode(true)
	if err != nil {
		return err
	}
	if err = w.lv(id); err != nil {
		return err
	}
	encodeHalf(w, IeiNonCurrentNativeKsi, m.NonCurrentNativeKsi)
	if err = encodeOptTlv(w, IeiUeNetworkCapability, m.UeNetworkCapability); err != nil {
		return err
	}
	if err = encodeTaiTv(w, IeiLastVisitedRegisteredTai, m.LastVisitedRegisteredTai); err != nil {
		return err
	}
	if m.DrxParameter != nil {
		if err = w.optional(tauRequestLayout, OptionalIe{Iei: IeiDrxParameter, Value: m.DrxParameter}); err != nil {
			return err
		}
	}
	if err = encodeOptTlv(w, IeiEpsBearerContextStatus, m.EpsBearerContextStatus); err != nil {
		return err
	}
	if err = encodeOptTlv(w, IeiMsNetworkCapability, m.MsNetworkCapability); err != nil {
		return err
	}
	encodeHalf(w, IeiTmsiStatus, m.TmsiStatus)
	encodeHalf(w, IeiAdditionalUpdateType, m.AdditionalUpdateType)
	if err = encodeOptTlv(w, IeiVoiceDomainPreference, m.VoiceDomainPreference); err != nil {
		return err
	}
	encodeHalf(w, IeiOldGutiType, m.OldGutiType)
	return w.optionals(tauRequestLayout, m.Others)
}

func (m *TrackingAreaUpdateRequest) decodeBody(r *reader) error {
	v, err := r.u8()
	if err != nil {
		return err
	}
	m.NasKeySetIdentifier = NasKeySetIdentifierFromOctet(v >> 4)
	m.EpsUpdateType = v & 0x0f
	raw, err := r.lv()
	if err != nil {
		return err
	}
	if m.OldGuti, err = DecodeMobileIdentity(raw, true); err != nil {
		return err
	}
	m.Others, err = r.readOptionals(tauRequestLayout, func(iei uint8, v []byte) (bool, error) {
		var err error
		switch iei {
		case IeiNonCurrentNativeKsi:
			m.NonCurrentNativeKsi = u8Ptr(v[0])
		case IeiUeNetworkCapability:
			m.UeNetworkCapability = v
		case IeiLastVisitedRegisteredTai:
			m.LastVisitedRegisteredTai, err = decodeTaiValue(v)
		case IeiDrxParameter:
			m.DrxParameter = v
		case IeiEpsBearerContextStatus:
			m.EpsBearerContextStatus = v
		case IeiMsNetworkCapability:
			m.MsNetworkCapability = v
		case IeiTmsiStatus:
			m.TmsiStatus = u8Ptr(v[0])
		case IeiAdditionalUpdateType:
			m.AdditionalUpdateType = u8Ptr(v[0])
		case IeiVoiceDomainPreference:
			m.VoiceDomainPreference = v
		case IeiOldGutiType:
			m.OldGutiType = u8Ptr(v[0])
		default:
			return false, nil
		}
		return true, err
	})
	return err
}

// 8.2.26 Tracking area update accept
type TrackingAreaUpdateAccept struct {
	emmBody
	EpsUpdateResult          uint8
	T3412Value               *uint8
	Guti                     *Guti
	TaiList                  TaiList
	EpsBearerContextStatus   []byte
	EmmCause                 *uint8
	T3402Value               *uint8
	T3423Value               *uint8
	EpsNetworkFeatureSupport []byte
	AdditionalUpdateResult   *uint8
	Others                   []OptionalIe
}

var tauAcceptLayout = ieLayout{
	tv: map[uint8]int{IeiT3412Value: 1, IeiLai: 5, IeiEmmCause: 1, IeiT3402Value: 1, IeiT3423Value: 1},
}

func (*TrackingAreaUpdateAccept) MessageType() uint8 { return MsgTypeTrackingAreaUpdateAccept }

func (m *TrackingAreaUpdateAccept) encodeBody(w *writer) error {
	w.u8(m.EpsUpdateResult & 0x07)
	encodeU8Tv(w, IeiT3412Value, m.T3412Value)
	if err := encodeGuti(w, IeiGuti, m.Guti); err != nil {
		return err
	}
	if m.TaiList != nil {
		tais, err := m.TaiList.Encode()
		if err != nil {
			return err
		}
		if err = w.tlv(IeiTaiList, tais); err != nil {
			return err
		}
	}
	if err := encodeOptTlv(w, IeiEpsBearerContextStatus, m.EpsBearerContextStatus); err != nil {
		return err
	}
	encodeU8Tv(w, IeiEmmCause, m.EmmCause)
	encodeU8Tv(w, IeiT3402Value, m.T3402Value)
	encodeU8Tv(w, IeiT3423Value, m.T3423Value)
	if err := encodeOptTlv(w, IeiEpsNetworkFeatureSupport, m.EpsNetworkFeatureSupport); err != nil {
		return err
	}
	encodeHalf(w, IeiAdditionalUpdateResult, m.AdditionalUpdateResult)
	return w.optionals(tauAcceptLayout, m.Others)
}

func (m *TrackingAreaUpdateAccept) decodeBody(r *reader) error {
	v, err := r.u8()
	if err != nil {
		return err
	}
	m.EpsUpdateResult = v & 0x07
	m.Others, err = r.readOptionals(tauAcceptLayout, func(iei uint8, v []byte) (bool, error) {
		var err error
		switch iei {
		case IeiT3412Value:
			m.T3412Value = u8Ptr(v[0])
		case IeiGuti:
			m.Guti, err = decodeGuti(v)
		case IeiTaiList:
			m.TaiList, err = DecodeTaiList(v)
		case IeiEpsBearerContextStatus:
			m.EpsBearerContextStatus = v
		case IeiEmmCause:
			m.EmmCause = u8Ptr(v[0])
		case IeiT3402Value:
			m.T3402Value = u8Ptr(v[0])
		case IeiT3423Value:
			m.T3423Value = u8Ptr(v[0])
		case IeiEpsNetworkFeatureSupport:
			m.EpsNetworkFeatureSupport = v
		case IeiAdditionalUpdateResult:
			m.AdditionalUpdateResult = u8Ptr(v[0])
		default:
			return false, nil
		}
		return true, err
	})
	return err
}

// 8.2.27 Tracking area update complete
type TrackingAreaUpdateComplete struct {
	emmBody
}

func (*TrackingAreaUpdateComplete) MessageType() uint8         { return MsgTypeTrackingAreaUpdateComplete }
func (*TrackingAreaUpdateComplete) encodeBody(w *writer) error { return nil }
func (*TrackingAreaUpdateComplete) decodeBody(r *reader) error { return nil }

// 8.2.28 Tracking area update reject
type TrackingAreaUpdateReject struct {
	emmBody
	EmmCause uint8
	Others   []OptionalIe
}

func (*TrackingAreaUpdateReject) MessageType() uint8 { return MsgTypeTrackingAreaUpdateReject }

func (m *TrackingAreaUpdateReject) encodeBody(w *writer) error {
	w.u8(m.EmmCause)
	return w.optionals(ieLayout{}, m.Others)
}

func (m *TrackingAreaUpdateReject) decodeBody(r *reader) (err error) {
	if m.EmmCause, err = r.u8(); err != nil {
		return err
	}
	m.Others, err = r.readOptionals(ieLayout{}, func(uint8, []byte) (bool, error) { return false, nil })
	return err
}

// 8.2.25 Service request, compact four octet form. It has no message type
// octet; the header fields are the message.
type ServiceRequest struct {
	emmBody
	Ksi            uint8
	SequenceNumber uint8
	ShortMac       uint16
}

func (*ServiceRequest) MessageType() uint8         { return MsgTypeServiceRequestPseudo }
func (*ServiceRequest) encodeBody(w *writer) error { return nil }
func (*ServiceRequest) decodeBody(r *reader) error { return nil }

// 8.2.15 Extended service request
type ExtendedServiceRequest struct {
	emmBody
	ServiceType            uint8
	NasKeySetIdentifier    NasKeySetIdentifier
	MTmsi                  MobileIdentity
	CsfbResponse           *uint8
	EpsBearerContextStatus []byte
	Others                 []OptionalIe
}

func (*ExtendedServiceRequest) MessageType() uint8 { return MsgTypeExtendedServiceRequest }

// IsCsfb reports whether the request is for CS fallback rather than packet services.
func (m *ExtendedServiceRequest) IsCsfb() bool {
	return m.ServiceType <= ServiceTypeMobileOriginatingCsFallbackEmergency
}

func (m *ExtendedServiceRequest) encodeBody(w *writer) error {
	w.u8(m.NasKeySetIdentifier.Octet()<<4 | m.ServiceType&0x0f)
	id, err := m.MTmsi.Encode(false)
	if err != nil {
		return err
	}
	if err = w.lv(id); err != nil {
		return err
	}
	encodeHalf(w, IeiCsfbResponse, m.CsfbResponse)
	if err = encodeOptTlv(w, IeiEpsBearerContextStatus, m.EpsBearerContextStatus); err != nil {
		return err
	}
	return w.optionals(ieLayout{}, m.Others)
}

func (m *ExtendedServiceRequest) decodeBody(r *reader) error {
	v, err := r.u8()
	if err != nil {
		return err
	}
	m.NasKeySetIdentifier = NasKeySetIdentifierFromOctet(v >> 4)
	m.ServiceType = v & 0x0f
	raw, err := r.lv()
	if err != nil {
		return err
	}
	if m.MTmsi, err = DecodeMobileIdentity(raw, false); err != nil {
		return err
	}
	m.Others, err = r.readOptionals(ieLayout{}, func(iei uint8, v []byte) (bool, error) {
		switch iei {
		case IeiCsfbResponse:
			m.CsfbResponse = u8Ptr(v[0])
		case IeiEpsBearerContextStatus:
			m.EpsBearerContextStatus = v
		default:
			return false, nil
		}
		return true, nil
	})
	return err
}

// 8.2.24 Service reject
type ServiceReject struct {
	emmBody
	EmmCause   uint8
	T3442Value *uint8
	Others     []OptionalIe
}

var serviceRejectLayout = ieLayout{
	tv: map[uint8]int{IeiT3442Value: 1},
}

func (*ServiceReject) MessageType() uint8 { return MsgTypeServiceReject }

func (m *ServiceReject) encodeBody(w *writer) error {
	w.u8(m.EmmCause)
	encodeU8Tv(w, IeiT3442Value, m.T3442Value)
	return w.optionals(serviceRejectLayout, m.Others)
}

func (m *ServiceReject) decodeBody(r *reader) (err error) {
	if m.EmmCause, err = r.u8(); err != nil {
		return err
	}
	m.Others, err = r.readOptionals(serviceRejectLayout, func(iei uint8, v []byte) (bool, error) {
		if iei == IeiT3442Value {
			m.T3442Value = u8Ptr(v[0])
			return true, nil
		}
		return false, nil
	})
	return err
}

// 8.2.7 Authentication request
type AuthenticationRequest struct {
	emmBody
	NasKeySetIdentifier NasKeySetIdentifier
	Rand                [16]byte
	Autn                []byte
}

func (*AuthenticationRequest) MessageType() uint8 { return MsgTypeAuthenticationRequest }

func (m *AuthenticationRequest) encodeBody(w *writer) error {
	w.u8(m.NasKeySetIdentifier.Octet())
	w.raw(m.Rand[:])
	return w.lv(m.Autn)
}

func (m *AuthenticationRequest) decodeBody(r *reader) error {
	v, err := r.u8()
	if err != nil {
		return err
	}
	m.NasKeySetIdentifier = NasKeySetIdentifierFromOctet(v & 0x0f)
	rand, err := r.bytes(16)
	if err != nil {
		return err
	}
	copy(m.Rand[:], rand)
	m.Autn, err = r.lv()
	return err
}

// 8.2.8 Authentication response
type AuthenticationResponse struct {
	emmBody
	Res []byte
}

func (*AuthenticationResponse) MessageType() uint8 { return MsgTypeAuthenticationResponse }

func (m *AuthenticationResponse) encodeBody(w *writer) error {
	return w.lv(m.Res)
}

func (m *AuthenticationResponse) decodeBody(r *reader) (err error) {
	if m.Res, err = r.lv(); err != nil {
		return err
	}
	if len(m.Res) < 4 || len(m.Res) > 16 {
		return fmt.Errorf("%w: RES length %d", ErrInvalidMandatoryIe, len(m.Res))
	}
	return nil
}

// 8.2.6 Authentication reject
type AuthenticationReject struct {
	emmBody
}

func (*AuthenticationReject) MessageType() uint8         { return MsgTypeAuthenticationReject }
func (*AuthenticationReject) encodeBody(w *writer) error { return nil }
func (*AuthenticationReject) decodeBody(r *reader) error { return nil }

// 8.2.5 Authentication failure
type AuthenticationFailure struct {
	emmBody
	EmmCause                       uint8
	AuthenticationFailureParameter []byte
	Others                         []OptionalIe
}

func (*AuthenticationFailure) MessageType() uint8 { return MsgTypeAuthenticationFailure }

func (m *AuthenticationFailure) encodeBody(w *writer) error {
	w.u8(m.EmmCause)
	if err := encodeOptTlv(w, IeiAuthFailureParameter, m.AuthenticationFailureParameter); err != nil {
		return err
	}
	return w.optionals(ieLayout{}, m.Others)
}

func (m *AuthenticationFailure) decodeBody(r *reader) (err error) {
	if m.EmmCause, err = r.u8(); err != nil {
		return err
	}
	m.Others, err = r.readOptionals(ieLayout{}, func(iei uint8, v []byte) (bool, error) {
		if iei == IeiAuthFailureParameter {
			m.AuthenticationFailureParameter = v
			return true, nil
		}
		return false, nil
	})
	return err
}

// 8.2.18 Identity request
type IdentityRequest struct {
	emmBody
	IdentityType uint8
}

func (*IdentityRequest) MessageType() uint8 { return MsgTypeIdentityRequest }

func (m *IdentityRequest) encodeBody(w *writer) error {
	w.u8(m.IdentityType & 0x07)
	return nil
}

func (m *IdentityRequest) decodeBody(r *reader) error {
	v, err := r.u8()
	m.IdentityType = v & 0x07
	return err
}

// 8.2.19 Identity response
type IdentityResponse struct {
	emmBody
	MobileIdentity MobileIdentity
}

func (*IdentityResponse) MessageType() uint8 { return MsgTypeIdentityResponse }

func (m *IdentityResponse) encodeBody(w *writer) error {
	id, err := m.MobileIdentity.Encode(false)
	if err != nil {
		return err
	}
	return w.lv(id)
}

func (m *IdentityResponse) decodeBody(r *reader) error {
	raw, err := r.lv()
	if err != nil {
		return err
	}
	m.MobileIdentity, err = DecodeMobileIdentity(raw, false)
	return err
}

// 8.2.20 Security mode command
type SecurityModeCommand struct {
	emmBody
	SelectedEea                    uint8
	SelectedEia                    uint8
	NasKeySetIdentifier            NasKeySetIdentifier
	ReplayedUeSecurityCapabilities []byte
	ImeisvRequest                  *uint8
	ReplayedNonceUe                []byte
	NonceMme                       []byte
	Others                         []OptionalIe
}

var securityModeCommandLayout = ieLayout{
	tv: map[uint8]int{IeiReplayedNonceUe: 4, IeiNonceMme: 4},
}

func (*SecurityModeCommand) MessageType() uint8 { return MsgTypeSecurityModeCommand }

func (m *SecurityModeCommand) encodeBody(w *writer) error {
	w.u8((m.SelectedEea&0x07)<<4 | m.SelectedEia&0x07)
	w.u8(m.NasKeySetIdentifier.Octet())
	if err := w.lv(m.ReplayedUeSecurityCapabilities); err != nil {
		return err
	}
	encodeHalf(w, IeiImeisvRequest, m.ImeisvRequest)
	if m.ReplayedNonceUe != nil {
		if err := w.optional(securityModeCommandLayout, OptionalIe{Iei: IeiReplayedNonceUe, Value: m.ReplayedNonceUe}); err != nil {
			return err
		}
	}
	if m.NonceMme != nil {
		if err := w.optional(securityModeCommandLayout, OptionalIe{Iei: IeiNonceMme, Value: m.NonceMme}); err != nil {
			return err
		}
	}
	return w.optionals(securityModeCommandLayout, m.Others)
}

func (m *SecurityModeCommand) decodeBody(r *reader) error {
	v, err := r.u8()
	if err != nil {
		return err
	}
	m.SelectedEea = (v >> 4) & 0x07
	m.SelectedEia = v & 0x07
	if v, err = r.u8(); err != nil {
		return err
	}
	m.NasKeySetIdentifier = NasKeySetIdentifierFromOctet(v & 0x0f)
	if m.ReplayedUeSecurityCapabilities, err = r.lv(); err != nil {
		return err
	}
	m.Others, err = r.readOptionals(securityModeCommandLayout, func(iei uint8, v []byte) (bool, error) {
		switch iei {
		case IeiImeisvRequest:
			m.ImeisvRequest = u8Ptr(v[0])
		case IeiReplayedNonceUe:
			m.ReplayedNonceUe = v
		case IeiNonceMme:
			m.NonceMme = v
		default:
			return false, nil
		}
		return true, nil
	})
	return err
}

// 8.2.21 Security mode complete
type SecurityModeComplete struct {
	emmBody
	Imeisv *MobileIdentity
	Others []OptionalIe
}

func (*SecurityModeComplete) MessageType() uint8 { return MsgTypeSecurityModeComplete }

func (m *SecurityModeComplete) encodeBody(w *writer) error {
	if m.Imeisv != nil {
		v, err := m.Imeisv.Encode(false)
		if err != nil {
			return err
		}
		if err = w.tlv(IeiImeisv, v); err != nil {
			return err
		}
	}
	return w.optionals(ieLayout{}, m.Others)
}

func (m *SecurityModeComplete) decodeBody(r *reader) (err error) {
	m.Others, err = r.readOptionals(ieLayout{}, func(iei uint8, v []byte) (bool, error) {
		if iei != IeiImeisv {
			return false, nil
		}
		id, err := DecodeMobileIdentity(v, false)
		if err != nil {
			return true, err
		}
		m.Imeisv = &id
		return true, nil
	})
	return err
}

// 8.2.22 Security mode reject
type SecurityModeReject struct {
	emmBody
	EmmCause uint8
}

func (*SecurityModeReject) MessageType() uint8 { return MsgTypeSecurityModeReject }

func (m *SecurityModeReject) encodeBody(w *writer) error {
	w.u8(m.EmmCause)
	return nil
}

func (m *SecurityModeReject) decodeBody(r *reader) (err error) {
	m.EmmCause, err = r.u8()
	return err
}

// 8.2.14 EMM status
type EmmStatus struct {
	emmBody
	EmmCause uint8
}

func (*EmmStatus) MessageType() uint8 { return MsgTypeEmmStatus }

func (m *EmmStatus) encodeBody(w *writer) error {
	w.u8(m.EmmCause)
	return nil
}

func (m *EmmStatus) decodeBody(r *reader) (err error) {
	m.EmmCause, err = r.u8()
	return err
}

// 8.2.13 EMM information
type EmmInformation struct {
	emmBody
	FullNameForNetwork  []byte
	ShortNameForNetwork []byte
	Others              []OptionalIe
}

var emmInformationLayout = ieLayout{
	tv: map[uint8]int{IeiLocalTimeZone: 1, IeiUniversalTimeAndTimeZone: 7},
}

func (*EmmInformation) MessageType() uint8 { return MsgTypeEmmInformation }

func (m *EmmInformation) encodeBody(w *writer) error {
	if err := encodeOptTlv(w, IeiFullNameForNetwork, m.FullNameForNetwork); err != nil {
		return err
	}
	if err := encodeOptTlv(w, IeiShortNameForNetwork, m.ShortNameForNetwork); err != nil {
		return err
	}
	return w.optionals(emmInformationLayout, m.Others)
}

func (m *EmmInformation) decodeBody(r *reader) (err error) {
	m.Others, err = r.readOptionals(emmInformationLayout, func(iei uint8, v []byte) (bool, error) {
		switch iei {
		case IeiFullNameForNetwork:
			m.FullNameForNetwork = v
		case IeiShortNameForNetwork:
			m.ShortNameForNetwork = v
		default:
			return false, nil
		}
		return true, nil
	})
	return err
}

// 8.2.12 Downlink NAS transport
type DownlinkNasTransport struct {
	emmBody
	NasMessageContainer []byte
}

func (*DownlinkNasTransport) MessageType() uint8 { return MsgTypeDownlinkNasTransport }

func (m *DownlinkNasTransport) encodeBody(w *writer) error {
	return w.lv(m.NasMessageContainer)
}

func (m *DownlinkNasTransport) decodeBody(r *reader) (err error) {
	m.NasMessageContainer, err = r.lv()
	return err
}

// 8.2.30 Uplink NAS transport
type UplinkNasTransport struct {
	emmBody
	NasMessageContainer []byte
}

func (*UplinkNasTransport) MessageType() uint8 { return MsgTypeUplinkNasTransport }

func (m *UplinkNasTransport) encodeBody(w *writer) error {
	return w.lv(m.NasMessageContainer)
}

func (m *UplinkNasTransport) decodeBody(r *reader) (err error) {
	m.NasMessageContainer, err = r.lv()
	return err
}
