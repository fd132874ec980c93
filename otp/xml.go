// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package otp

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

const (
	SOAPEnvelopeNamespace = "http://schemas.xmlsoap.org/soap/envelope/"
	GatewayNamespace      = "urn:businesshub:otp:v1"

	soapPrefix    = "soapenv"
	gatewayPrefix = "otp"
)

// buildEnvelope renders a SOAP 1.1 envelope whose body holds a single
// <otp:{op}Request> element with the given fields in order.
func buildEnvelope(op Operation, fields []field) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	env := doc.CreateElement(soapPrefix + ":Envelope")
	env.CreateAttr("xmlns:"+soapPrefix, SOAPEnvelopeNamespace)
	env.CreateAttr("xmlns:"+gatewayPrefix, GatewayNamespace)
	env.CreateElement(soapPrefix + ":Header")
	body := env.CreateElement(soapPrefix + ":Body")

	req := body.CreateElement(gatewayPrefix + ":" + string(op) + "Request")
	for _, f := range fields {
		req.CreateElement(gatewayPrefix + ":" + f.name).SetText(f.value)
	}
	return doc.WriteToBytes()
}

// XMLResponse is a decoded SOAP gateway response. Raw is the body as received.
type XMLResponse struct {
	Raw              []byte
	ReferenceNumber  string
	MaskedCellNumber string
	ResponseCode     string
	ResponseMessage  string
}

func (*XMLResponse) isGatewayResponse() {}

// parseEnvelope decodes a SOAP response. Elements are matched by local name
// so any namespace prefix the gateway chooses is accepted. A soap Fault is
// returned as a *GatewayError using statusCode.
func parseEnvelope(raw []byte, statusCode int) (*XMLResponse, error) {
	const op = "otp.parseEnvelope"
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrMalformedResponse, err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "Envelope" {
		return nil, fmt.Errorf("%s: missing soap envelope: %w", op, ErrMalformedResponse)
	}
	body := findLocal(root, "Body")
	if body == nil {
		return nil, fmt.Errorf("%s: missing soap body: %w", op, ErrMalformedResponse)
	}
	if fault := findLocal(body, "Fault"); fault != nil {
		return nil, &GatewayError{
			StatusCode: statusCode,
			Fault:      textOf(fault, "faultstring"),
			Body:       raw,
		}
	}
	resp := &XMLResponse{
		Raw:              raw,
		ReferenceNumber:  textOf(body, "ReferenceNumber"),
		MaskedCellNumber: textOf(body, "MaskedCellNumber"),
		ResponseCode:     textOf(body, "ResponseCode"),
		ResponseMessage:  textOf(body, "ResponseMessage"),
	}
	if resp.ResponseCode == "" {
		return nil, fmt.Errorf("%s: missing response code: %w", op, ErrMalformedResponse)
	}
	return resp, nil
}

// findLocal does a depth first search for the first element named tag,
// ignoring its namespace prefix.
func findLocal(e *etree.Element, tag string) *etree.Element {
	for _, c := range e.ChildElements() {
		if c.Tag == tag {
			return c
		}
		if found := findLocal(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func textOf(e *etree.Element, tag string) string {
	if found := findLocal(e, tag); found != nil {
		return strings.TrimSpace(found.Text())
	}
	return ""
}
