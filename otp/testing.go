// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package otp

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/beevik/etree"
)

// TestingT defines a very slim interface required by the test helpers.
type TestingT interface {
	Errorf(format string, args ...interface{})
	FailNow()
	Cleanup(func())
}

// HelperT is implemented by *testing.T and friends.
type HelperT interface {
	Helper()
}

// Defaults used by the TestGateway.
const (
	TestGatewayBearer     = "test-gateway-bearer"
	TestMaskedCellNumber  = "*******4567"
	testFaultString       = "Internal gateway failure"
	testGatewayMaxRequest = 64 * 1024
)

// TestGateway is an in-process OTP gateway speaking either format. It
// requires a bearer from its allowed set, echoes the reference number and
// answers with a configurable response code per operation.
type TestGateway struct {
	t      TestingT
	format Format
	server *httptest.Server

	mu          sync.Mutex
	bearers     map[string]bool
	bearerFunc  func(string) bool
	codes       map[Operation]string
	status      int
	raw         []byte
	delay       time.Duration
	calls       int
	unauthCalls int
	last        map[string]string
	lastOp      Operation
}

// StartTestGateway starts a TestGateway. It is stopped by t.Cleanup.
func StartTestGateway(t TestingT, format Format) *TestGateway {
	if v, ok := t.(HelperT); ok {
		v.Helper()
	}
	g := &TestGateway{
		t:       t,
		format:  format,
		bearers: map[string]bool{TestGatewayBearer: true},
		codes:   map[Operation]string{},
	}
	g.server = httptest.NewServer(g)
	t.Cleanup(g.server.Close)
	return g
}

// URL is the base url clients should use.
func (g *TestGateway) URL() string { return g.server.URL }

// SetBearers replaces the set of accepted bearer tokens.
func (g *TestGateway) SetBearers(bearers ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bearers = make(map[string]bool, len(bearers))
	for _, b := range bearers {
		g.bearers[b] = true
	}
}

// SetBearerFunc accepts any bearer for which f returns true, in addition to
// the set from SetBearers.
func (g *TestGateway) SetBearerFunc(f func(bearer string) bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bearerFunc = f
}

// SetResponseCode sets the code returned for op. The default is CodeSuccess.
func (g *TestGateway) SetResponseCode(op Operation, code string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.codes[op] = code
}

// SetStatus makes every authorized call fail with status. For FormatXML the
// body is a soap fault.
func (g *TestGateway) SetStatus(status int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status = status
}

// SetRawResponse makes every authorized call answer 200 with body.
func (g *TestGateway) SetRawResponse(body []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.raw = body
}

// SetDelay delays every reply.
func (g *TestGateway) SetDelay(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.delay = d
}

// Calls returns the number of requests that carried an accepted bearer.
func (g *TestGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// UnauthorizedCalls returns the number of requests answered with 401.
func (g *TestGateway) UnauthorizedCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unauthCalls
}

// LastRequest returns the operation and fields of the last authorized call.
func (g *TestGateway) LastRequest() (Operation, map[string]string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastOp, g.last
}

// ServeHTTP implements the gateway.
func (g *TestGateway) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	bearer, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
	if !ok || !(g.bearers[bearer] || (g.bearerFunc != nil && g.bearerFunc(bearer))) {
		g.unauthCalls++
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	g.calls++

	body, err := io.ReadAll(io.LimitReader(req.Body, testGatewayMaxRequest))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	op, fields, err := g.parseRequest(req, body)
	if err != nil {
		g.t.Errorf("test gateway: %s", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	g.lastOp, g.last = op, fields
	if g.delay > 0 {
		// the lock is held so Calls waits for a delayed request
		time.Sleep(g.delay)
	}

	switch {
	case g.status != 0:
		g.writeFailure(w)
		return
	case g.raw != nil:
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(g.raw)
		return
	}

	code := CodeSuccess
	if c, ok := g.codes[op]; ok {
		code = c
	}
	g.writeResponse(w, op, fields["ReferenceNumber"], code)
}

func (g *TestGateway) parseRequest(req *http.Request, body []byte) (Operation, map[string]string, error) {
	fields := map[string]string{}
	if g.format == FormatJSON {
		var op Operation
		switch {
		case strings.HasSuffix(req.URL.Path, "/send"):
			op = OperationSend
		case strings.HasSuffix(req.URL.Path, "/validate"):
			op = OperationValidate
		default:
			return "", nil, fmt.Errorf("unexpected path %q", req.URL.Path)
		}
		var m map[string]string
		if err := json.Unmarshal(body, &m); err != nil {
			return "", nil, err
		}
		for k, v := range m {
			// normalize to element names so tests can use one vocabulary
			fields[jsonToElement[k]] = v
		}
		return op, fields, nil
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return "", nil, err
	}
	root := doc.Root()
	if root == nil {
		return "", nil, fmt.Errorf("empty envelope")
	}
	bodyEl := findLocal(root, "Body")
	if bodyEl == nil || len(bodyEl.ChildElements()) != 1 {
		return "", nil, fmt.Errorf("expected a single body element")
	}
	reqEl := bodyEl.ChildElements()[0]
	op := Operation(strings.TrimSuffix(reqEl.Tag, "Request"))
	if action := strings.Trim(req.Header.Get("SOAPAction"), `"`); action != string(op) {
		return "", nil, fmt.Errorf("SOAPAction %q does not match %q", action, op)
	}
	for _, c := range reqEl.ChildElements() {
		fields[c.Tag] = c.Text()
	}
	return op, fields, nil
}

var jsonToElement = map[string]string{
	"cellNumber":      "CellNumber",
	"idNumber":        "IDNumber",
	"referenceNumber": "ReferenceNumber",
	"otpValue":        "OTPValue",
}

func (g *TestGateway) writeResponse(w http.ResponseWriter, op Operation, ref, code string) {
	if g.format == FormatJSON {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"referenceNumber":  ref,
			"maskedCellNumber": TestMaskedCellNumber,
			"responseCode":     code,
			"responseMessage":  "gateway says " + code,
		})
		return
	}
	doc := etree.NewDocument()
	env := doc.CreateElement("S:Envelope")
	env.CreateAttr("xmlns:S", SOAPEnvelopeNamespace)
	resp := env.CreateElement("S:Body").CreateElement("ns2:" + string(op) + "Response")
	resp.CreateAttr("xmlns:ns2", GatewayNamespace)
	resp.CreateElement("ns2:ReferenceNumber").SetText(ref)
	resp.CreateElement("ns2:MaskedCellNumber").SetText(TestMaskedCellNumber)
	resp.CreateElement("ns2:ResponseCode").SetText(code)
	resp.CreateElement("ns2:ResponseMessage").SetText("gateway says " + code)
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	_, _ = doc.WriteTo(w)
}

func (g *TestGateway) writeFailure(w http.ResponseWriter) {
	if g.format == FormatJSON {
		w.WriteHeader(g.status)
		_, _ = w.Write([]byte(`{"error":"gateway failure"}`))
		return
	}
	doc := etree.NewDocument()
	env := doc.CreateElement("soap:Envelope")
	env.CreateAttr("xmlns:soap", SOAPEnvelopeNamespace)
	fault := env.CreateElement("soap:Body").CreateElement("soap:Fault")
	fault.CreateElement("faultcode").SetText("soap:Server")
	fault.CreateElement("faultstring").SetText(testFaultString)
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(g.status)
	_, _ = doc.WriteTo(w)
}
