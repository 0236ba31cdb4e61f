package ews

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"exchange_bridge/core/domain"
	"exchange_bridge/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: logger.LevelError, Output: io.Discard, Service: "test"})
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{
		AuthType: AuthBasic,
		Server:   "mail.example.com",
		Email:    "user@example.com",
		Username: "user@example.com",
		Password: "secret",
		Endpoint: srv.URL,
	}, testLogger())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client, srv
}

const findItemResponseXML = `<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body>
    <m:FindItemResponse xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages"
                        xmlns:t="http://schemas.microsoft.com/exchange/services/2006/types">
      <m:ResponseMessages>
        <m:FindItemResponseMessage ResponseClass="Success">
          <m:ResponseCode>NoError</m:ResponseCode>
          <m:RootFolder TotalItemsInView="2" IncludesLastItemInRange="true">
            <t:Items>
              <t:CalendarItem>
                <t:ItemId Id="AAMkADE1" ChangeKey="DwAAABYA"/>
              </t:CalendarItem>
              <t:CalendarItem>
                <t:ItemId Id="AAMkADE2" ChangeKey="DwAAABYB"/>
              </t:CalendarItem>
            </t:Items>
          </m:RootFolder>
        </m:FindItemResponseMessage>
      </m:ResponseMessages>
    </m:FindItemResponse>
  </s:Body>
</s:Envelope>`

const getItemResponseXML = `<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body>
    <m:GetItemResponse xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages"
                       xmlns:t="http://schemas.microsoft.com/exchange/services/2006/types">
      <m:ResponseMessages>
        <m:GetItemResponseMessage ResponseClass="Success">
          <m:ResponseCode>NoError</m:ResponseCode>
          <m:Items>
            <t:CalendarItem>
              <t:ItemId Id="AAMkADE1" ChangeKey="DwAAABYA"/>
              <t:Subject>Team standup</t:Subject>
              <t:Body BodyType="Text">Daily sync</t:Body>
              <t:UID>040000008200E00074C5B7101A82E008</t:UID>
              <t:Start>2026-03-10T08:00:00Z</t:Start>
              <t:End>2026-03-10T08:30:00Z</t:End>
              <t:IsAllDayEvent>false</t:IsAllDayEvent>
              <t:Location>Room 4</t:Location>
              <t:Organizer>
                <t:Mailbox>
                  <t:Name>Jane Doe</t:Name>
                  <t:EmailAddress>jane@example.com</t:EmailAddress>
                </t:Mailbox>
              </t:Organizer>
              <t:StartTimeZone Id="Central Europe Standard Time" Name="(UTC+01:00) Budapest"/>
            </t:CalendarItem>
          </m:Items>
        </m:GetItemResponseMessage>
      </m:ResponseMessages>
    </m:GetItemResponse>
  </s:Body>
</s:Envelope>`

const notFoundResponseXML = `<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body>
    <m:GetItemResponse xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages">
      <m:ResponseMessages>
        <m:GetItemResponseMessage ResponseClass="Error">
          <m:MessageText>The specified object was not found in the store.</m:MessageText>
          <m:ResponseCode>ErrorItemNotFound</m:ResponseCode>
        </m:GetItemResponseMessage>
      </m:ResponseMessages>
    </m:GetItemResponse>
  </s:Body>
</s:Envelope>`

const createItemResponseXML = `<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body>
    <m:CreateItemResponse xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages"
                          xmlns:t="http://schemas.microsoft.com/exchange/services/2006/types">
      <m:ResponseMessages>
        <m:CreateItemResponseMessage ResponseClass="Success">
          <m:ResponseCode>NoError</m:ResponseCode>
          <m:Items>
            <t:CalendarItem>
              <t:ItemId Id="AAMkNEW" ChangeKey="DwAAANEW"/>
            </t:CalendarItem>
          </m:Items>
        </m:CreateItemResponseMessage>
      </m:ResponseMessages>
    </m:CreateItemResponse>
  </s:Body>
</s:Envelope>`

const emptyFindResponseXML = `<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body>
    <m:FindItemResponse xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages">
      <m:ResponseMessages>
        <m:FindItemResponseMessage ResponseClass="Success">
          <m:ResponseCode>NoError</m:ResponseCode>
          <m:RootFolder TotalItemsInView="0" IncludesLastItemInRange="true">
            <t:Items xmlns:t="http://schemas.microsoft.com/exchange/services/2006/types"/>
          </m:RootFolder>
        </m:FindItemResponseMessage>
      </m:ResponseMessages>
    </m:FindItemResponse>
  </s:Body>
</s:Envelope>`

func TestFindCalendarItems(t *testing.T) {
	var gotBody string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Write([]byte(findItemResponseXML))
	})

	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 14)

	ids, err := client.FindCalendarItems(context.Background(), start, end, 50)
	if err != nil {
		t.Fatalf("FindCalendarItems() error = %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("got %d item IDs, want 2", len(ids))
	}
	if ids[0].ID != "AAMkADE1" || ids[1].ID != "AAMkADE2" {
		t.Errorf("unexpected IDs: %+v", ids)
	}

	for _, want := range []string{
		`MaxEntriesReturned="50"`,
		`StartDate="2026-03-10T00:00:00Z"`,
		`<t:EmailAddress>user@example.com</t:EmailAddress>`,
		`<t:BaseShape>IdOnly</t:BaseShape>`,
	} {
		if !strings.Contains(gotBody, want) {
			t.Errorf("request body missing %q", want)
		}
	}
}

func TestGetItemsParsesCalendarItem(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(getItemResponseXML))
	})

	items, err := client.GetItems(context.Background(), []ItemID{{ID: "AAMkADE1"}})
	if err != nil {
		t.Fatalf("GetItems() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}

	item := items[0]
	if item.Subject != "Team standup" {
		t.Errorf("Subject = %q", item.Subject)
	}
	if item.UID != "040000008200E00074C5B7101A82E008" {
		t.Errorf("UID = %q", item.UID)
	}
	if item.Start != "2026-03-10T08:00:00Z" {
		t.Errorf("Start = %q", item.Start)
	}
	if item.StartTimeZone.ID != "Central Europe Standard Time" {
		t.Errorf("StartTimeZone.ID = %q", item.StartTimeZone.ID)
	}
	if item.Organizer.Mailbox.EmailAddress != "jane@example.com" {
		t.Errorf("Organizer = %q", item.Organizer.Mailbox.EmailAddress)
	}
	if item.Body.Value != "Daily sync" {
		t.Errorf("Body = %q", item.Body.Value)
	}
}

func TestGetItemsEmptyInput(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty ID list")
	})

	items, err := client.GetItems(context.Background(), nil)
	if err != nil || items != nil {
		t.Fatalf("GetItems(nil) = %v, %v; want nil, nil", items, err)
	}
}

func TestCreateItemSendsNoInvitations(t *testing.T) {
	var gotBody string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Write([]byte(createItemResponseXML))
	})

	id, err := client.CreateItem(context.Background(), &CreateRequest{
		Subject: "Review <draft> & sign",
		Start:   time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC),
		End:     time.Date(2026, 3, 12, 11, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}
	if id.ID != "AAMkNEW" {
		t.Errorf("ItemID = %q, want AAMkNEW", id.ID)
	}

	if !strings.Contains(gotBody, `SendMeetingInvitations="SendToNone"`) {
		t.Error("request missing SendMeetingInvitations=SendToNone")
	}
	if !strings.Contains(gotBody, "Review &lt;draft&gt; &amp; sign") {
		t.Error("subject was not XML-escaped")
	}
}

func TestUpdateItemBuildsSetItemFields(t *testing.T) {
	var gotBody string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Write([]byte(`<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body>
    <m:UpdateItemResponse xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages">
      <m:ResponseMessages>
        <m:UpdateItemResponseMessage ResponseClass="Success">
          <m:ResponseCode>NoError</m:ResponseCode>
        </m:UpdateItemResponseMessage>
      </m:ResponseMessages>
    </m:UpdateItemResponse>
  </s:Body>
</s:Envelope>`))
	})

	err := client.UpdateItem(context.Background(), ItemID{ID: "AAMkADE1", ChangeKey: "DwAAABYA"}, []FieldChange{
		{FieldURI: "item:Subject", Element: "<t:Subject>Renamed</t:Subject>"},
	})
	if err != nil {
		t.Fatalf("UpdateItem() error = %v", err)
	}

	for _, want := range []string{
		`ConflictResolution="AlwaysOverwrite"`,
		`SendMeetingInvitationsOrCancellations="SendToNone"`,
		`<t:FieldURI FieldURI="item:Subject"/>`,
		`<t:Subject>Renamed</t:Subject>`,
	} {
		if !strings.Contains(gotBody, want) {
			t.Errorf("request body missing %q", want)
		}
	}
}

func TestDeleteItemSendsNoCancellations(t *testing.T) {
	var gotBody string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Write([]byte(`<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body>
    <m:DeleteItemResponse xmlns:m="http://schemas.microsoft.com/exchange/services/2006/messages">
      <m:ResponseMessages>
        <m:DeleteItemResponseMessage ResponseClass="Success">
          <m:ResponseCode>NoError</m:ResponseCode>
        </m:DeleteItemResponseMessage>
      </m:ResponseMessages>
    </m:DeleteItemResponse>
  </s:Body>
</s:Envelope>`))
	})

	if err := client.DeleteItem(context.Background(), ItemID{ID: "AAMkADE1"}); err != nil {
		t.Fatalf("DeleteItem() error = %v", err)
	}
	if !strings.Contains(gotBody, `SendMeetingCancellations="SendToNone"`) {
		t.Error("request missing SendMeetingCancellations=SendToNone")
	}
}

func TestFindItemIDByUIDNotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(emptyFindResponseXML))
	})

	_, err := client.FindItemIDByUID(context.Background(), "missing-uid")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("FindItemIDByUID() error = %v, want ErrNotFound", err)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, "", domain.ErrAuth},
		{"forbidden", http.StatusForbidden, "", domain.ErrAuth},
		{"server error", http.StatusInternalServerError, "", domain.ErrConnection},
		{"item not found code", http.StatusOK, notFoundResponseXML, domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := client.GetItems(context.Background(), []ItemID{{ID: "x"}})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("GetItems() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConnectionErrorDropsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	client, err := NewClient(Config{
		AuthType: AuthBasic,
		Server:   "mail.example.com",
		Email:    "user@example.com",
		Username: "user@example.com",
		Password: "secret",
		Endpoint: srv.URL,
	}, testLogger())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	before := client.session()
	_, err = client.FindCalendarItems(context.Background(), time.Now(), time.Now().Add(time.Hour), 1)
	if !errors.Is(err, domain.ErrConnection) {
		t.Fatalf("error = %v, want ErrConnection", err)
	}
	if client.session() == before {
		t.Error("session was not dropped after connection failure")
	}
}

func TestMapResponseCode(t *testing.T) {
	tests := []struct {
		code    string
		wantErr error
	}{
		{"NoError", nil},
		{"", nil},
		{"ErrorItemNotFound", domain.ErrNotFound},
		{"ErrorItemDeleted", domain.ErrNotFound},
		{"ErrorInvalidId", domain.ErrNotFound},
		{"ErrorInvalidIdMalformed", domain.ErrNotFound},
		{"ErrorAccessDenied", domain.ErrAuth},
		{"ErrorImpersonateUserDenied", domain.ErrAuth},
		{"ErrorMailboxStoreUnavailable", domain.ErrConnection},
		{"ErrorInternalServerError", domain.ErrConnection},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := mapResponseCode(tt.code, "msg")
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("mapResponseCode(%q) = %v, want nil", tt.code, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("mapResponseCode(%q) = %v, want %v", tt.code, err, tt.wantErr)
			}
		})
	}
}

func TestResolveTimeZone(t *testing.T) {
	def, _ := time.LoadLocation("Europe/Budapest")

	tests := []struct {
		name string
		id   string
		want string
	}{
		{"customized zone uses default", CustomizedTimeZone, "Europe/Budapest"},
		{"empty uses default", "", "Europe/Budapest"},
		{"windows id mapped", "W. Europe Standard Time", "Europe/Berlin"},
		{"iana passthrough", "America/New_York", "America/New_York"},
		{"unknown uses default", "Galactic Standard Time", "Europe/Budapest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveTimeZone(tt.id, def); got.String() != tt.want {
				t.Errorf("ResolveTimeZone(%q) = %s, want %s", tt.id, got, tt.want)
			}
		})
	}
}
