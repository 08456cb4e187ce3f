// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
// SPDX-FileCopyrightText: 2021 Open Networking Foundation <info@opennetworking.org>
// Copyright 2019 free5GC.org
//
// SPDX-License-Identifier: Apache-2.0
//

// Package nas is the access stratum side of EMM: it binds inbound S1AP
// primitives to UE contexts and feeds their NAS PDUs to the EMM engine.
package nas

import (
	ctxt "context"
	"fmt"

	"github.com/omec-project/mme/context"
	"github.com/omec-project/mme/itti"
	"github.com/omec-project/mme/logger"
	"github.com/omec-project/mme/metrics"
	"github.com/omec-project/mme/mmeapp"
	"github.com/omec-project/mme/nas/nasMessage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("mme/nas")

// Route picks the MME UE S1AP id an initial UE message is queued under: the
// UE context its S-TMSI or NAS identity resolves to, or an id reserved for
// the context it will create. Every later message of that UE then shares its
// shard. It only reads the lookup indexes, so it may run outside the task
// loop.
func Route(mme *context.MmeContext, msg *itti.InitialUeMessage) {
	if msg.UeId != 0 {
		return
	}
	if ue, ok := lookupUe(mme, msg); ok {
		msg.UeId = ue.UeId
		return
	}
	id, err := mme.ReserveUeId()
	if err != nil {
		logger.AsLog.Warnf("route initial ue message from enb ue %d: %v", msg.EnbUeS1apId, err)
		return
	}
	msg.UeId = id
}

// HandleEstablishRequest handles the initial NAS message of a new signalling
// connection. The UE is looked up by S-TMSI or by the identity carried in the
// message; an unknown UE gets a new context that is destroyed on release
// unless it registers. The UE context the message was bound to is returned
// so the caller can persist it.
func HandleEstablishRequest(ctx ctxt.Context, mme *context.MmeContext, msg *itti.InitialUeMessage,
) (*context.UeContext, error) {
	_, span := tracer.Start(ctx, "NAS EstablishRequest",
		trace.WithAttributes(attribute.Int64("enbUeS1apId", msg.EnbUeS1apId)),
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	if len(msg.NasPdu) == 0 {
		mme.ReleaseUeId(msg.UeId)
		logger.AsLog.Errorf("initial ue message from enb ue %d without nas pdu", msg.EnbUeS1apId)
		return nil, fmt.Errorf("initial ue message without nas pdu")
	}

	ue, ok := lookupUe(mme, msg)
	if ok {
		mme.ReleaseUeId(msg.UeId)
		ue.Log.Infof("new signalling connection, enb ue s1ap id %d", msg.EnbUeS1apId)
		ue.EnbUeS1apId = msg.EnbUeS1apId
		ue.Tai = msg.Tai
		ue.Ecgi = msg.Ecgi
		ue.EcmState = context.EcmConnected
		ue.EstablishmentCause = msg.EstablishmentCause
		ue.ReleasePending = false
	} else {
		if ue, ok = mme.ClaimUeId(msg.UeId, msg.EnbUeS1apId, msg.Tai, msg.Ecgi); !ok {
			var err error
			ue, err = mme.NewUeContext(msg.EnbUeS1apId, msg.Tai, msg.Ecgi)
			if err != nil {
				logger.AsLog.Errorf("allocate ue context: %v", err)
				return nil, err
			}
		}
		ue.EstablishmentCause = msg.EstablishmentCause
		ue.DestroyOnRelease = true
		ue.Log.Infof("new ue context, enb ue s1ap id %d", msg.EnbUeS1apId)
	}
	span.SetAttributes(attribute.Int64("mmeUeS1apId", ue.UeId))
	mme.MarkDirty(ue.UeId)

	return ue, recv(mme, ue, msg.NasPdu)
}

// HandleDataIndication handles an uplink NAS PDU on an existing connection.
func HandleDataIndication(ctx ctxt.Context, mme *context.MmeContext, msg *itti.UplinkNasTransport) error {
	_, span := tracer.Start(ctx, "NAS DataIndication",
		trace.WithAttributes(attribute.Int64("mmeUeS1apId", msg.UeId)),
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	ue, ok := mme.UeContextById(msg.UeId)
	if !ok {
		// a detach request from a UE the MME no longer knows only needs its
		// connection released
		if body, err := peek(msg.NasPdu); err == nil {
			if _, isDetach := body.(*nasMessage.DetachRequest); isDetach {
				logger.AsLog.Infof("detach request from unknown ue %d", msg.UeId)
				mmeapp.ReleaseUnknownUe(mme, msg.UeId, msg.EnbUeS1apId)
				return nil
			}
		}
		logger.AsLog.Warnf("uplink nas transport for unknown ue %d", msg.UeId)
		return fmt.Errorf("ue context %d not found", msg.UeId)
	}
	ue.Tai = msg.Tai
	ue.Ecgi = msg.Ecgi
	mme.MarkDirty(ue.UeId)
	return recv(mme, ue, msg.NasPdu)
}

// HandleNonDelivery records a downlink NAS PDU the eNB could not deliver.
// Procedures guarded by a retransmission timer resend on expiry.
func HandleNonDelivery(mme *context.MmeContext, msg *itti.NasNonDeliveryIndication) {
	ue, ok := mme.UeContextById(msg.UeId)
	if !ok {
		logger.AsLog.Warnf("nas non delivery for unknown ue %d", msg.UeId)
		return
	}
	ue.Emm.Log.Warnf("downlink nas pdu not delivered, cause %s", msg.Cause)
	metrics.IncrementNasMsgStats(mme.Name, "DownlinkNas", "out", "failure", "non_delivery")
}

// HandleReleaseIndication handles the loss of the signalling connection.
func HandleReleaseIndication(mme *context.MmeContext, msg *itti.UeContextReleaseRequest) {
	mmeapp.HandleUeContextReleaseRequest(mme, msg)
}

func lookupUe(mme *context.MmeContext, msg *itti.InitialUeMessage) (*context.UeContext, bool) {
	if msg.MTmsi != nil {
		if ue, ok := mme.UeContextByMTmsi(*msg.MTmsi); ok {
			return ue, true
		}
	}
	body, err := peek(msg.NasPdu)
	if err != nil {
		return nil, false
	}
	var id nasMessage.MobileIdentity
	switch m := body.(type) {
	case *nasMessage.AttachRequest:
		id = m.EpsMobileIdentity
	case *nasMessage.TrackingAreaUpdateRequest:
		id = m.OldGuti
	case *nasMessage.DetachRequest:
		id = m.EpsMobileIdentity
	case *nasMessage.ExtendedServiceRequest:
		if m.MTmsi.Type == nasMessage.MobileIdentityTypeTmsi {
			return mme.UeContextByMTmsi(m.MTmsi.Tmsi)
		}
		return nil, false
	default:
		return nil, false
	}
	if id.Type != nasMessage.EpsMobileIdentityTypeGuti || id.Guti == nil {
		return nil, false
	}
	return mme.UeContextByGuti(*id.Guti)
}

// peek decodes the body of a PDU that is not ciphered without touching any
// security context. It only serves UE lookup; the message is decoded again
// under the UE security context.
func peek(pdu []byte) (nasMessage.Body, error) {
	h, size, err := nasMessage.DecodeHeader(pdu)
	if err != nil {
		return nil, err
	}
	switch size {
	case nasMessage.PlainHeaderSize, nasMessage.ServiceRequestHeaderSize:
		return nasMessage.DecodePlain(pdu)
	}
	if nasMessage.IsCiphered(h.SecurityHeaderType) {
		return nil, fmt.Errorf("ciphered nas pdu")
	}
	return nasMessage.DecodePlain(pdu[size:])
}
