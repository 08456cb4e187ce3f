// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

// Package nasMessage implements the EPS NAS PDU layout of 3GPP TS 24.301:
// the security header, the EMM messages handled by the MME and a header-only
// view of ESM messages.
package nasMessage

// 9.2 Protocol discriminator (TS 24.007 11.2.3.1.1)
const (
	ProtocolDiscriminatorESM uint8 = 0x02
	ProtocolDiscriminatorEMM uint8 = 0x07
)

// 9.3.1 Security header type
const (
	SecurityHeaderTypePlainNas                                               uint8 = 0x00
	SecurityHeaderTypeIntegrityProtected                                     uint8 = 0x01
	SecurityHeaderTypeIntegrityProtectedAndCiphered                          uint8 = 0x02
	SecurityHeaderTypeIntegrityProtectedWithNewEpsSecurityContext            uint8 = 0x03
	SecurityHeaderTypeIntegrityProtectedAndCipheredWithNewEpsSecurityContext uint8 = 0x04
	SecurityHeaderTypeServiceRequest                                         uint8 = 0x0c
)

// 9.8 Message type
const (
	MsgTypeAttachRequest                uint8 = 0x41
	MsgTypeAttachAccept                 uint8 = 0x42
	MsgTypeAttachComplete               uint8 = 0x43
	MsgTypeAttachReject                 uint8 = 0x44
	MsgTypeDetachRequest                uint8 = 0x45
	MsgTypeDetachAccept                 uint8 = 0x46
	MsgTypeTrackingAreaUpdateRequest    uint8 = 0x48
	MsgTypeTrackingAreaUpdateAccept     uint8 = 0x49
	MsgTypeTrackingAreaUpdateComplete   uint8 = 0x4a
	MsgTypeTrackingAreaUpdateReject     uint8 = 0x4b
	MsgTypeExtendedServiceRequest       uint8 = 0x4c
	MsgTypeServiceReject                uint8 = 0x4e
	MsgTypeGutiReallocationCommand      uint8 = 0x50
	MsgTypeGutiReallocationComplete     uint8 = 0x51
	MsgTypeAuthenticationRequest        uint8 = 0x52
	MsgTypeAuthenticationResponse       uint8 = 0x53
	MsgTypeAuthenticationReject         uint8 = 0x54
	MsgTypeIdentityRequest              uint8 = 0x55
	MsgTypeIdentityResponse             uint8 = 0x56
	MsgTypeAuthenticationFailure        uint8 = 0x5c
	MsgTypeSecurityModeCommand          uint8 = 0x5d
	MsgTypeSecurityModeComplete         uint8 = 0x5e
	MsgTypeSecurityModeReject           uint8 = 0x5f
	MsgTypeEmmStatus                    uint8 = 0x60
	MsgTypeEmmInformation               uint8 = 0x61
	MsgTypeDownlinkNasTransport         uint8 = 0x62
	MsgTypeUplinkNasTransport           uint8 = 0x63
	MsgTypeCsServiceNotification        uint8 = 0x64
	MsgTypeDownlinkGenericNasTransport  uint8 = 0x68
	MsgTypeUplinkGenericNasTransport    uint8 = 0x69
	MsgTypeServiceRequestPseudo         uint8 = 0xff // compact form, no message type octet on the wire
	MsgTypeActivateDefaultBearerRequest uint8 = 0xc1
	MsgTypePdnConnectivityRequest       uint8 = 0xd0
)

// 9.9.3.9 EMM cause
const (
	Cause2ImsiUnknownInHss                        uint8 = 2
	Cause3IllegalUe                               uint8 = 3
	Cause5ImeiNotAccepted                         uint8 = 5
	Cause6IllegalMe                               uint8 = 6
	Cause7EpsServicesNotAllowed                   uint8 = 7
	Cause8EpsAndNonEpsServicesNotAllowed          uint8 = 8
	Cause9UeIdentityCannotBeDerivedByNetwork      uint8 = 9
	Cause10ImplicitlyDetached                     uint8 = 10
	Cause11PlmnNotAllowed                         uint8 = 11
	Cause12TrackingAreaNotAllowed                 uint8 = 12
	Cause13RoamingNotAllowedInTrackingArea        uint8 = 13
	Cause14EpsServicesNotAllowedInPlmn            uint8 = 14
	Cause15NoSuitableCellsInTrackingArea          uint8 = 15
	Cause16MscTemporarilyNotReachable             uint8 = 16
	Cause17NetworkFailure                         uint8 = 17
	Cause18CsDomainNotAvailable                   uint8 = 18
	Cause19EsmFailure                             uint8 = 19
	Cause20MacFailure                             uint8 = 20
	Cause21SynchFailure                           uint8 = 21
	Cause22Congestion                             uint8 = 22
	Cause23UeSecurityCapabilitiesMismatch         uint8 = 23
	Cause24SecurityModeRejectedUnspecified        uint8 = 24
	Cause25NotAuthorizedForThisCsg                uint8 = 25
	Cause26NonEpsAuthenticationUnacceptable       uint8 = 26
	Cause35RequestedServiceOptionNotAuthorized    uint8 = 35
	Cause39CsServiceTemporarilyNotAvailable       uint8 = 39
	Cause40NoEpsBearerContextActivated            uint8 = 40
	Cause42SevereNetworkFailure                   uint8 = 42
	Cause95SemanticallyIncorrectMessage           uint8 = 95
	Cause96InvalidMandatoryInformation            uint8 = 96
	Cause97MessageTypeNonExistentOrNotImplemented uint8 = 97
	Cause98MessageTypeNotCompatibleWithState      uint8 = 98
	Cause99InformationElementNonExistent          uint8 = 99
	Cause100ConditionalIeError                    uint8 = 100
	Cause101MessageNotCompatibleWithProtocolState uint8 = 101
	Cause111ProtocolErrorUnspecified              uint8 = 111
)

// 9.9.3.11 EPS attach type
const (
	EpsAttachTypeEps             uint8 = 0x01
	EpsAttachTypeCombinedEpsImsi uint8 = 0x02
	EpsAttachTypeEmergency       uint8 = 0x06
	EpsAttachTypeReserved        uint8 = 0x07
)

// 9.9.3.10 EPS attach result
const (
	EpsAttachResultEpsOnly         uint8 = 0x01
	EpsAttachResultCombinedEpsImsi uint8 = 0x02
)

// 9.9.3.7 Detach type (uplink values; downlink reuses 1..3 with other meaning)
const (
	DetachTypeEps                 uint8 = 0x01
	DetachTypeImsi                uint8 = 0x02
	DetachTypeCombinedEpsImsi     uint8 = 0x03
	DetachTypeReattachRequired    uint8 = 0x01
	DetachTypeReattachNotRequired uint8 = 0x02
	DetachTypeSwitchOff           uint8 = 0x08
)

// 9.9.3.14 EPS update type
const (
	EpsUpdateTypeTaUpdating                   uint8 = 0x00
	EpsUpdateTypeCombinedTaLaUpdating         uint8 = 0x01
	EpsUpdateTypeCombinedTaLaUpdatingWithImsi uint8 = 0x02
	EpsUpdateTypePeriodicUpdating             uint8 = 0x03
	EpsUpdateTypeActiveFlag                   uint8 = 0x08
)

// 9.9.3.13 EPS update result
const (
	EpsUpdateResultTaUpdated           uint8 = 0x00
	EpsUpdateResultCombinedTaLaUpdated uint8 = 0x01
)

// 9.9.3.27 Service type
const (
	ServiceTypeMobileOriginatingCsFallback          uint8 = 0x00
	ServiceTypeMobileTerminatingCsFallback          uint8 = 0x01
	ServiceTypeMobileOriginatingCsFallbackEmergency uint8 = 0x02
	ServiceTypePacketServicesViaS1                  uint8 = 0x08
)

// 9.9.3.5 CSFB response
const (
	CsfbResponseRejected uint8 = 0x00
	CsfbResponseAccepted uint8 = 0x01
)

// 9.9.3.12 EPS mobile identity and TS 24.008 10.5.1.4 mobile identity
const (
	MobileIdentityTypeNoIdentity uint8 = 0x00
	MobileIdentityTypeImsi       uint8 = 0x01
	MobileIdentityTypeImei       uint8 = 0x02
	MobileIdentityTypeImeisv     uint8 = 0x03
	MobileIdentityTypeTmsi       uint8 = 0x04
	EpsMobileIdentityTypeImei    uint8 = 0x03
	EpsMobileIdentityTypeGuti    uint8 = 0x06
)

// 9.9.3.21 NAS key set identifier
const (
	NasKeySetIdentifierNoKeyAvailable uint8 = 0x07
	TypeOfSecurityContextNative       uint8 = 0x00
	TypeOfSecurityContextMapped       uint8 = 0x01
)

// 9.9.3.23 NAS security algorithms
const (
	AlgCipheringEEA0 uint8 = 0x00
	AlgCipheringEEA1 uint8 = 0x01
	AlgCipheringEEA2 uint8 = 0x02
	AlgCipheringEEA3 uint8 = 0x03

	AlgIntegrityEIA0 uint8 = 0x00
	AlgIntegrityEIA1 uint8 = 0x01
	AlgIntegrityEIA2 uint8 = 0x02
	AlgIntegrityEIA3 uint8 = 0x03
)

// Optional IEIs used by the modelled messages.
const (
	IeiOldPtmsiSignature          uint8 = 0x19
	IeiAdditionalGuti             uint8 = 0x50
	IeiLastVisitedRegisteredTai   uint8 = 0x52
	IeiDrxParameter               uint8 = 0x5c
	IeiMsNetworkCapability        uint8 = 0x31
	IeiOldLai                     uint8 = 0x13
	IeiTmsiStatus                 uint8 = 0x90
	IeiMsClassmark2               uint8 = 0x11
	IeiMsClassmark3               uint8 = 0x20
	IeiSupportedCodecs            uint8 = 0x40
	IeiAdditionalUpdateType       uint8 = 0xf0
	IeiVoiceDomainPreference      uint8 = 0x5d
	IeiDeviceProperties           uint8 = 0xd0
	IeiOldGutiType                uint8 = 0xe0
	IeiMsNetworkFeatureSupport    uint8 = 0xc0
	IeiNetworkResourceIdContainer uint8 = 0x10
	IeiT3324Value                 uint8 = 0x6a
	IeiT3412ExtendedValue         uint8 = 0x5e
	IeiExtendedDrxParameters      uint8 = 0x6e
	IeiGuti                       uint8 = 0x50
	IeiLai                        uint8 = 0x13
	IeiMsIdentity                 uint8 = 0x23
	IeiEmmCause                   uint8 = 0x53
	IeiT3402Value                 uint8 = 0x17
	IeiT3423Value                 uint8 = 0x59
	IeiEquivalentPlmns            uint8 = 0x4a
	IeiEmergencyNumberList        uint8 = 0x34
	IeiEpsNetworkFeatureSupport   uint8 = 0x64
	IeiAdditionalUpdateResult     uint8 = 0xf0
	IeiEsmMessageContainer        uint8 = 0x78
	IeiT3346Value                 uint8 = 0x5f
	IeiT3402ValueGprsTimer2       uint8 = 0x16
	IeiExtendedEmmCause           uint8 = 0xa0
	IeiNonCurrentNativeKsi        uint8 = 0xb0
	IeiGprsCipheringKeySeqNumber  uint8 = 0x80
	IeiNonceUe                    uint8 = 0x55
	IeiUeNetworkCapability        uint8 = 0x58
	IeiUeRadioCapabilityUpdate    uint8 = 0xa0
	IeiEpsBearerContextStatus     uint8 = 0x57
	IeiT3412Value                 uint8 = 0x5a
	IeiTaiList                    uint8 = 0x54
	IeiCsfbResponse               uint8 = 0xb0
	IeiT3442Value                 uint8 = 0x5b
	IeiAuthFailureParameter       uint8 = 0x30
	IeiImeisvRequest              uint8 = 0xc0
	IeiReplayedNonceUe            uint8 = 0x55
	IeiNonceMme                   uint8 = 0x56
	IeiImeisv                     uint8 = 0x23
	IeiFullNameForNetwork         uint8 = 0x43
	IeiShortNameForNetwork        uint8 = 0x45
	IeiLocalTimeZone              uint8 = 0x46
	IeiUniversalTimeAndTimeZone   uint8 = 0x47
	IeiNetworkDaylightSavingTime  uint8 = 0x49
)

var causeNames = map[uint8]string{
	Cause2ImsiUnknownInHss:                        "imsi_unknown_in_hss",
	Cause3IllegalUe:                               "illegal_ue",
	Cause5ImeiNotAccepted:                         "imei_not_accepted",
	Cause6IllegalMe:                               "illegal_me",
	Cause7EpsServicesNotAllowed:                   "eps_services_not_allowed",
	Cause8EpsAndNonEpsServicesNotAllowed:          "eps_and_non_eps_services_not_allowed",
	Cause9UeIdentityCannotBeDerivedByNetwork:      "ue_identity_cant_be_derived_by_nw",
	Cause10ImplicitlyDetached:                     "implicitly_detached",
	Cause11PlmnNotAllowed:                         "plmn_not_allowed",
	Cause12TrackingAreaNotAllowed:                 "tracking_area_not_allowed",
	Cause13RoamingNotAllowedInTrackingArea:        "roaming_not_allowed_in_tracking_area",
	Cause14EpsServicesNotAllowedInPlmn:            "eps_services_not_allowed_in_plmn",
	Cause15NoSuitableCellsInTrackingArea:          "no_suitable_cells_in_tracking_area",
	Cause16MscTemporarilyNotReachable:             "msc_temporarily_not_reachable",
	Cause17NetworkFailure:                         "network_failure",
	Cause18CsDomainNotAvailable:                   "cs_domain_not_available",
	Cause19EsmFailure:                             "esm_failure",
	Cause20MacFailure:                             "mac_failure",
	Cause21SynchFailure:                           "synch_failure",
	Cause22Congestion:                             "emm_cause_congestion",
	Cause23UeSecurityCapabilitiesMismatch:         "ue_security_capabilities_mismatch",
	Cause24SecurityModeRejectedUnspecified:        "security_mode_rejected_unspecified",
	Cause25NotAuthorizedForThisCsg:                "not_authorized_for_this_csg",
	Cause26NonEpsAuthenticationUnacceptable:       "non_eps_authentication_unacceptable",
	Cause35RequestedServiceOptionNotAuthorized:    "requested_service_option_not_authorized",
	Cause39CsServiceTemporarilyNotAvailable:       "cs_service_temporarily_not_available",
	Cause40NoEpsBearerContextActivated:            "no_eps_bearer_context_activated",
	Cause42SevereNetworkFailure:                   "severe_network_failure",
	Cause95SemanticallyIncorrectMessage:           "semantically_incorrect_message",
	Cause96InvalidMandatoryInformation:            "invalid_mandatory_information",
	Cause97MessageTypeNonExistentOrNotImplemented: "message_type_non_existent",
	Cause98MessageTypeNotCompatibleWithState:      "message_type_not_compatible_with_state",
	Cause99InformationElementNonExistent:          "information_element_non_existent",
	Cause100ConditionalIeError:                    "conditional_ie_error",
	Cause101MessageNotCompatibleWithProtocolState: "message_not_compatible_with_protocol_state",
	Cause111ProtocolErrorUnspecified:              "protocol_error_unspecified",
}

// CauseName returns the label used for an EMM cause in counters and logs.
func CauseName(cause uint8) string {
	if name, ok := causeNames[cause]; ok {
		return name
	}
	return "unknown_cause"
}
