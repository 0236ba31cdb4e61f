// Package ews is a minimal SOAP client for Exchange Web Services, covering
// the calendar operations the bridge needs: calendar-view reads, UID
// lookup and item create/update/delete.
package ews

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Azure/go-ntlmssp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"exchange_bridge/core/domain"
	"exchange_bridge/pkg/logger"
)

// Auth strategies.
const (
	AuthNTLM   = "ntlm"
	AuthBasic  = "basic"
	AuthOAuth2 = "oauth2"
)

const soapContentType = "text/xml; charset=utf-8"

// Config carries the connection settings for one mailbox.
type Config struct {
	AuthType     string
	Server       string // bare host, scheme and trailing slashes stripped
	Email        string
	Username     string // effective credential username (domain-prefixed)
	Password     string
	ClientID     string
	ClientSecret string
	TenantID     string
	InsecureSSL  bool

	// Endpoint overrides the derived EWS URL; used by tests.
	Endpoint string
	// HTTPTimeout bounds a single SOAP round trip. Defaults to 30s.
	HTTPTimeout time.Duration
}

// Client talks SOAP to one Exchange mailbox. The underlying HTTP client
// is treated as the session: connection-category failures drop it so the
// next call reconnects (and re-runs the NTLM handshake or token fetch).
type Client struct {
	cfg      Config
	endpoint string
	log      *logger.Logger

	mu         sync.Mutex
	httpClient *http.Client
}

func NewClient(cfg Config, log *logger.Logger) (*Client, error) {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		if cfg.Server == "" {
			return nil, fmt.Errorf("ews: server is required")
		}
		endpoint = fmt.Sprintf("https://%s/EWS/Exchange.asmx", cfg.Server)
	}

	c := &Client{
		cfg:      cfg,
		endpoint: endpoint,
		log:      log.WithField("component", "ews"),
	}
	if cfg.InsecureSSL {
		c.log.Warn("TLS certificate verification is disabled for %s", endpoint)
	}

	httpClient, err := c.buildHTTPClient()
	if err != nil {
		return nil, err
	}
	c.httpClient = httpClient
	return c, nil
}

func (c *Client) buildHTTPClient() (*http.Client, error) {
	transport := &http.Transport{
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	if c.cfg.InsecureSSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	switch c.cfg.AuthType {
	case AuthNTLM:
		return &http.Client{
			Transport: &basicAuthTransport{
				username: c.cfg.Username,
				password: c.cfg.Password,
				next:     ntlmssp.Negotiator{RoundTripper: transport},
			},
			Timeout: c.cfg.HTTPTimeout,
		}, nil
	case AuthBasic:
		return &http.Client{
			Transport: &basicAuthTransport{
				username: c.cfg.Username,
				password: c.cfg.Password,
				next:     transport,
			},
			Timeout: c.cfg.HTTPTimeout,
		}, nil
	case AuthOAuth2:
		oauthCfg := clientcredentials.Config{
			ClientID:     c.cfg.ClientID,
			ClientSecret: c.cfg.ClientSecret,
			TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", c.cfg.TenantID),
			Scopes:       []string{"https://outlook.office365.com/.default"},
		}
		baseCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{
			Transport: transport,
			Timeout:   c.cfg.HTTPTimeout,
		})
		client := oauthCfg.Client(baseCtx)
		client.Timeout = c.cfg.HTTPTimeout
		return client, nil
	default:
		return nil, fmt.Errorf("ews: unknown auth type %q", c.cfg.AuthType)
	}
}

// basicAuthTransport sets the credential header on every request. For
// NTLM the wrapped negotiator consumes it to run the handshake.
type basicAuthTransport struct {
	username string
	password string
	next     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.username, t.password)
	return t.next.RoundTrip(req)
}

// reset drops the cached session so the next call reconnects.
func (c *Client) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if client, err := c.buildHTTPClient(); err == nil {
		c.httpClient = client
	}
}

func (c *Client) session() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.httpClient
}

// sendRequest posts one SOAP envelope and returns the raw response body.
// HTTP-level failures are mapped into the domain error categories.
func (c *Client) sendRequest(ctx context.Context, body string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBufferString(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", soapContentType)

	resp, err := c.session().Do(req)
	if err != nil {
		c.reset()
		return nil, fmt.Errorf("%w: %v", domain.ErrConnection, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.reset()
		return nil, fmt.Errorf("%w: reading response: %v", domain.ErrConnection, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: HTTP %d from %s", domain.ErrAuth, resp.StatusCode, c.endpoint)
	case resp.StatusCode != http.StatusOK:
		c.reset()
		return nil, fmt.Errorf("%w: HTTP %d from %s", domain.ErrConnection, resp.StatusCode, c.endpoint)
	}
	return respBody, nil
}

// mapResponseCode translates an EWS ResponseCode into a domain error.
func mapResponseCode(code, message string) error {
	switch code {
	case "NoError", "":
		return nil
	case "ErrorItemNotFound", "ErrorItemDeleted",
		"ErrorInvalidId", "ErrorInvalidIdMalformed":
		return domain.ErrNotFound
	case "ErrorAccessDenied", "ErrorImpersonateUserDenied", "ErrorInvalidUserOid",
		"ErrorTokenSerializationDenied", "ErrorPasswordExpired":
		return fmt.Errorf("%w: %s: %s", domain.ErrAuth, code, message)
	default:
		return fmt.Errorf("%w: %s: %s", domain.ErrConnection, code, message)
	}
}

func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// Escape XML-escapes text content; exported for callers composing
// FieldChange elements.
func Escape(s string) string { return xmlEscape(s) }

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// =============================================================================
// FindItem (CalendarView)
// =============================================================================

// FindCalendarItems runs a recurrence-expanding CalendarView between start
// and end, returning item IDs only (fetch details with GetItems).
func (c *Client) FindCalendarItems(ctx context.Context, start, end time.Time, maxEntries int) ([]ItemID, error) {
	requestXML := fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/"
                  xmlns:t="http://schemas.microsoft.com/exchange/services/2006/types"
                  xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages">
    <soapenv:Header>
        <t:RequestServerVersion Version="Exchange2013_SP1"/>
    </soapenv:Header>
    <soapenv:Body>
        <m:FindItem Traversal="Shallow">
            <m:ItemShape>
                <t:BaseShape>IdOnly</t:BaseShape>
            </m:ItemShape>
            <m:CalendarView MaxEntriesReturned="%d" StartDate="%s" EndDate="%s"/>
            <m:ParentFolderIds>
                <t:DistinguishedFolderId Id="calendar">
                    <t:Mailbox>
                        <t:EmailAddress>%s</t:EmailAddress>
                    </t:Mailbox>
                </t:DistinguishedFolderId>
            </m:ParentFolderIds>
        </m:FindItem>
    </soapenv:Body>
</soapenv:Envelope>`, maxEntries, formatTime(start), formatTime(end), xmlEscape(c.cfg.Email))

	respBody, err := c.sendRequest(ctx, requestXML)
	if err != nil {
		return nil, err
	}

	var env findItemEnvelope
	if err := xml.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling FindItem response: %v", domain.ErrConnection, err)
	}
	if env.Body.Fault != nil {
		return nil, mapSOAPFault(env.Body.Fault)
	}

	var ids []ItemID
	for _, msg := range env.Body.FindItemResponse.ResponseMessages.FindItemResponseMessage {
		if err := mapResponseCode(msg.ResponseCode, msg.MessageText); err != nil {
			return nil, err
		}
		for _, item := range msg.RootFolder.Items.CalendarItem {
			ids = append(ids, item.ItemID)
		}
	}
	return ids, nil
}

// FindItemIDByUID looks up an item by its iCalendar UID. Returns
// domain.ErrNotFound when no item matches.
func (c *Client) FindItemIDByUID(ctx context.Context, uid string) (ItemID, error) {
	requestXML := fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/"
                  xmlns:t="http://schemas.microsoft.com/exchange/services/2006/types"
                  xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages">
    <soapenv:Header>
        <t:RequestServerVersion Version="Exchange2013_SP1"/>
    </soapenv:Header>
    <soapenv:Body>
        <m:FindItem Traversal="Shallow">
            <m:ItemShape>
                <t:BaseShape>IdOnly</t:BaseShape>
            </m:ItemShape>
            <m:Restriction>
                <t:IsEqualTo>
                    <t:FieldURI FieldURI="calendar:UID"/>
                    <t:FieldURIOrConstant>
                        <t:Constant Value="%s"/>
                    </t:FieldURIOrConstant>
                </t:IsEqualTo>
            </m:Restriction>
            <m:ParentFolderIds>
                <t:DistinguishedFolderId Id="calendar">
                    <t:Mailbox>
                        <t:EmailAddress>%s</t:EmailAddress>
                    </t:Mailbox>
                </t:DistinguishedFolderId>
            </m:ParentFolderIds>
        </m:FindItem>
    </soapenv:Body>
</soapenv:Envelope>`, xmlEscape(uid), xmlEscape(c.cfg.Email))

	respBody, err := c.sendRequest(ctx, requestXML)
	if err != nil {
		return ItemID{}, err
	}

	var env findItemEnvelope
	if err := xml.Unmarshal(respBody, &env); err != nil {
		return ItemID{}, fmt.Errorf("%w: unmarshaling FindItem response: %v", domain.ErrConnection, err)
	}
	if env.Body.Fault != nil {
		return ItemID{}, mapSOAPFault(env.Body.Fault)
	}

	for _, msg := range env.Body.FindItemResponse.ResponseMessages.FindItemResponseMessage {
		if err := mapResponseCode(msg.ResponseCode, msg.MessageText); err != nil {
			return ItemID{}, err
		}
		for _, item := range msg.RootFolder.Items.CalendarItem {
			return item.ItemID, nil
		}
	}
	return ItemID{}, domain.ErrNotFound
}

// =============================================================================
// GetItem
// =============================================================================

// GetItems fetches full calendar details for the given item IDs.
func (c *Client) GetItems(ctx context.Context, ids []ItemID) ([]CalendarItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var itemIDs strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&itemIDs, `<t:ItemId Id="%s"/>`, xmlEscape(id.ID))
	}

	requestXML := fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/"
                  xmlns:t="http://schemas.microsoft.com/exchange/services/2006/types"
                  xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages">
    <soapenv:Header>
        <t:RequestServerVersion Version="Exchange2013_SP1"/>
    </soapenv:Header>
    <soapenv:Body>
        <m:GetItem>
            <m:ItemShape>
                <t:BaseShape>IdOnly</t:BaseShape>
                <t:BodyType>Text</t:BodyType>
                <t:AdditionalProperties>
                    <t:FieldURI FieldURI="item:Subject"/>
                    <t:FieldURI FieldURI="item:Body"/>
                    <t:FieldURI FieldURI="calendar:Start"/>
                    <t:FieldURI FieldURI="calendar:End"/>
                    <t:FieldURI FieldURI="calendar:IsAllDayEvent"/>
                    <t:FieldURI FieldURI="calendar:Location"/>
                    <t:FieldURI FieldURI="calendar:Organizer"/>
                    <t:FieldURI FieldURI="calendar:UID"/>
                    <t:FieldURI FieldURI="calendar:StartTimeZone"/>
                </t:AdditionalProperties>
            </m:ItemShape>
            <m:ItemIds>%s</m:ItemIds>
        </m:GetItem>
    </soapenv:Body>
</soapenv:Envelope>`, itemIDs.String())

	respBody, err := c.sendRequest(ctx, requestXML)
	if err != nil {
		return nil, err
	}

	var env getItemEnvelope
	if err := xml.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling GetItem response: %v", domain.ErrConnection, err)
	}
	if env.Body.Fault != nil {
		return nil, mapSOAPFault(env.Body.Fault)
	}

	var items []CalendarItem
	for _, msg := range env.Body.GetItemResponse.ResponseMessages.GetItemResponseMessage {
		if err := mapResponseCode(msg.ResponseCode, msg.MessageText); err != nil {
			return nil, err
		}
		items = append(items, msg.Items.CalendarItem...)
	}
	return items, nil
}

// =============================================================================
// CreateItem
// =============================================================================

// CreateRequest carries the wire fields of a new calendar item.
type CreateRequest struct {
	Subject  string
	Body     string
	Start    time.Time
	End      time.Time
	IsAllDay bool
	Location string
}

// CreateItem creates a calendar item without sending invitations and
// returns its item ID.
func (c *Client) CreateItem(ctx context.Context, req *CreateRequest) (ItemID, error) {
	var fields strings.Builder
	fmt.Fprintf(&fields, "<t:Subject>%s</t:Subject>", xmlEscape(req.Subject))
	if req.Body != "" {
		fmt.Fprintf(&fields, `<t:Body BodyType="Text">%s</t:Body>`, xmlEscape(req.Body))
	}
	fmt.Fprintf(&fields, "<t:Start>%s</t:Start>", formatTime(req.Start))
	fmt.Fprintf(&fields, "<t:End>%s</t:End>", formatTime(req.End))
	fmt.Fprintf(&fields, "<t:IsAllDayEvent>%t</t:IsAllDayEvent>", req.IsAllDay)
	if req.Location != "" {
		fmt.Fprintf(&fields, "<t:Location>%s</t:Location>", xmlEscape(req.Location))
	}

	requestXML := fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/"
                  xmlns:t="http://schemas.microsoft.com/exchange/services/2006/types"
                  xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages">
    <soapenv:Header>
        <t:RequestServerVersion Version="Exchange2013_SP1"/>
    </soapenv:Header>
    <soapenv:Body>
        <m:CreateItem SendMeetingInvitations="SendToNone">
            <m:SavedItemFolderId>
                <t:DistinguishedFolderId Id="calendar">
                    <t:Mailbox>
                        <t:EmailAddress>%s</t:EmailAddress>
                    </t:Mailbox>
                </t:DistinguishedFolderId>
            </m:SavedItemFolderId>
            <m:Items>
                <t:CalendarItem>%s</t:CalendarItem>
            </m:Items>
        </m:CreateItem>
    </soapenv:Body>
</soapenv:Envelope>`, xmlEscape(c.cfg.Email), fields.String())

	respBody, err := c.sendRequest(ctx, requestXML)
	if err != nil {
		return ItemID{}, err
	}

	var env createItemEnvelope
	if err := xml.Unmarshal(respBody, &env); err != nil {
		return ItemID{}, fmt.Errorf("%w: unmarshaling CreateItem response: %v", domain.ErrConnection, err)
	}
	if env.Body.Fault != nil {
		return ItemID{}, mapSOAPFault(env.Body.Fault)
	}

	for _, msg := range env.Body.CreateItemResponse.ResponseMessages.Messages {
		if err := mapResponseCode(msg.ResponseCode, msg.MessageText); err != nil {
			return ItemID{}, err
		}
		for _, item := range msg.Items.CalendarItem {
			return item.ItemID, nil
		}
	}
	return ItemID{}, fmt.Errorf("%w: CreateItem returned no item", domain.ErrConnection)
}

// =============================================================================
// UpdateItem
// =============================================================================

// FieldChange is one SetItemField entry: the field URI plus the inner
// CalendarItem element carrying the new value.
type FieldChange struct {
	FieldURI string
	Element  string
}

// UpdateItem applies the given field changes with AlwaysOverwrite conflict
// resolution. No invitations or cancellations are sent.
func (c *Client) UpdateItem(ctx context.Context, id ItemID, changes []FieldChange) error {
	if len(changes) == 0 {
		return nil
	}

	var updates strings.Builder
	for _, ch := range changes {
		fmt.Fprintf(&updates, `<t:SetItemField><t:FieldURI FieldURI="%s"/><t:CalendarItem>%s</t:CalendarItem></t:SetItemField>`,
			ch.FieldURI, ch.Element)
	}

	requestXML := fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/"
                  xmlns:t="http://schemas.microsoft.com/exchange/services/2006/types"
                  xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages">
    <soapenv:Header>
        <t:RequestServerVersion Version="Exchange2013_SP1"/>
    </soapenv:Header>
    <soapenv:Body>
        <m:UpdateItem ConflictResolution="AlwaysOverwrite" SendMeetingInvitationsOrCancellations="SendToNone">
            <m:ItemChanges>
                <t:ItemChange>
                    <t:ItemId Id="%s" ChangeKey="%s"/>
                    <t:Updates>%s</t:Updates>
                </t:ItemChange>
            </m:ItemChanges>
        </m:UpdateItem>
    </soapenv:Body>
</soapenv:Envelope>`, xmlEscape(id.ID), xmlEscape(id.ChangeKey), updates.String())

	respBody, err := c.sendRequest(ctx, requestXML)
	if err != nil {
		return err
	}

	var env updateItemEnvelope
	if err := xml.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("%w: unmarshaling UpdateItem response: %v", domain.ErrConnection, err)
	}
	if env.Body.Fault != nil {
		return mapSOAPFault(env.Body.Fault)
	}

	for _, msg := range env.Body.UpdateItemResponse.ResponseMessages.Messages {
		if err := mapResponseCode(msg.ResponseCode, msg.MessageText); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// DeleteItem
// =============================================================================

// DeleteItem moves the item to deleted items without sending cancellations.
func (c *Client) DeleteItem(ctx context.Context, id ItemID) error {
	requestXML := fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/"
                  xmlns:t="http://schemas.microsoft.com/exchange/services/2006/types"
                  xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages">
    <soapenv:Header>
        <t:RequestServerVersion Version="Exchange2013_SP1"/>
    </soapenv:Header>
    <soapenv:Body>
        <m:DeleteItem DeleteType="MoveToDeletedItems" SendMeetingCancellations="SendToNone">
            <m:ItemIds>
                <t:ItemId Id="%s" ChangeKey="%s"/>
            </m:ItemIds>
        </m:DeleteItem>
    </soapenv:Body>
</soapenv:Envelope>`, xmlEscape(id.ID), xmlEscape(id.ChangeKey))

	respBody, err := c.sendRequest(ctx, requestXML)
	if err != nil {
		return err
	}

	var env deleteItemEnvelope
	if err := xml.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("%w: unmarshaling DeleteItem response: %v", domain.ErrConnection, err)
	}
	if env.Body.Fault != nil {
		return mapSOAPFault(env.Body.Fault)
	}

	for _, msg := range env.Body.DeleteItemResponse.ResponseMessages.Messages {
		if err := mapResponseCode(msg.ResponseCode, msg.MessageText); err != nil {
			return err
		}
	}
	return nil
}

func mapSOAPFault(fault *soapFault) error {
	msg := strings.ToLower(fault.FaultString)
	if strings.Contains(msg, "unauthorized") || strings.Contains(msg, "denied") {
		return fmt.Errorf("%w: %s", domain.ErrAuth, fault.FaultString)
	}
	return fmt.Errorf("%w: %s", domain.ErrConnection, fault.FaultString)
}
