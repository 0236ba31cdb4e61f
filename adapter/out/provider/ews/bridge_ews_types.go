package ews

import "encoding/xml"

// =============================================================================
// Shared response fragments
// =============================================================================

// ItemID identifies an Exchange store item.
type ItemID struct {
	ID        string `xml:"Id,attr"`
	ChangeKey string `xml:"ChangeKey,attr"`
}

type Mailbox struct {
	Name         string `xml:"Name"`
	EmailAddress string `xml:"EmailAddress"`
	RoutingType  string `xml:"RoutingType"`
	MailboxType  string `xml:"MailboxType"`
}

type Organizer struct {
	Mailbox Mailbox `xml:"Mailbox"`
}

type TimeZoneDefinition struct {
	ID   string `xml:"Id,attr"`
	Name string `xml:"Name,attr"`
}

type ItemBody struct {
	BodyType string `xml:"BodyType,attr"`
	Value    string `xml:",chardata"`
}

// CalendarItem is the wire form of a single occurrence. Start/End are
// UTC instants; StartTimeZone carries the server-side Windows zone ID.
type CalendarItem struct {
	ItemID        ItemID             `xml:"ItemId"`
	UID           string             `xml:"UID"`
	Subject       string             `xml:"Subject"`
	Body          ItemBody           `xml:"Body"`
	Start         string             `xml:"Start"`
	End           string             `xml:"End"`
	IsAllDayEvent bool               `xml:"IsAllDayEvent"`
	Location      string             `xml:"Location"`
	Organizer     Organizer          `xml:"Organizer"`
	StartTimeZone TimeZoneDefinition `xml:"StartTimeZone"`
}

// =============================================================================
// FindItem
// =============================================================================

type findItemEnvelope struct {
	XMLName xml.Name     `xml:"Envelope"`
	Body    findItemBody `xml:"Body"`
}

type findItemBody struct {
	FindItemResponse findItemResponse `xml:"FindItemResponse"`
	Fault            *soapFault       `xml:"Fault"`
}

type findItemResponse struct {
	ResponseMessages struct {
		FindItemResponseMessage []findItemResponseMessage `xml:"FindItemResponseMessage"`
	} `xml:"ResponseMessages"`
}

type findItemResponseMessage struct {
	ResponseClass string     `xml:"ResponseClass,attr"`
	ResponseCode  string     `xml:"ResponseCode"`
	MessageText   string     `xml:"MessageText"`
	RootFolder    rootFolder `xml:"RootFolder"`
}

type rootFolder struct {
	TotalItemsInView        string `xml:"TotalItemsInView,attr"`
	IncludesLastItemInRange string `xml:"IncludesLastItemInRange,attr"`
	Items                   struct {
		CalendarItem []CalendarItem `xml:"CalendarItem"`
	} `xml:"Items"`
}

// =============================================================================
// GetItem
// =============================================================================

type getItemEnvelope struct {
	XMLName xml.Name    `xml:"Envelope"`
	Body    getItemBody `xml:"Body"`
}

type getItemBody struct {
	GetItemResponse getItemResponse `xml:"GetItemResponse"`
	Fault           *soapFault      `xml:"Fault"`
}

type getItemResponse struct {
	ResponseMessages struct {
		GetItemResponseMessage []getItemResponseMessage `xml:"GetItemResponseMessage"`
	} `xml:"ResponseMessages"`
}

type getItemResponseMessage struct {
	ResponseClass string `xml:"ResponseClass,attr"`
	ResponseCode  string `xml:"ResponseCode"`
	MessageText   string `xml:"MessageText"`
	Items         struct {
		CalendarItem []CalendarItem `xml:"CalendarItem"`
	} `xml:"Items"`
}

// =============================================================================
// CreateItem / UpdateItem / DeleteItem
// =============================================================================

type createItemEnvelope struct {
	XMLName xml.Name       `xml:"Envelope"`
	Body    createItemBody `xml:"Body"`
}

type createItemBody struct {
	CreateItemResponse itemMutationResponse `xml:"CreateItemResponse"`
	Fault              *soapFault           `xml:"Fault"`
}

type updateItemEnvelope struct {
	XMLName xml.Name       `xml:"Envelope"`
	Body    updateItemBody `xml:"Body"`
}

type updateItemBody struct {
	UpdateItemResponse itemMutationResponse `xml:"UpdateItemResponse"`
	Fault              *soapFault           `xml:"Fault"`
}

type deleteItemEnvelope struct {
	XMLName xml.Name       `xml:"Envelope"`
	Body    deleteItemBody `xml:"Body"`
}

type deleteItemBody struct {
	DeleteItemResponse itemMutationResponse `xml:"DeleteItemResponse"`
	Fault              *soapFault           `xml:"Fault"`
}

// itemMutationResponse is shared by Create/Update/DeleteItem responses;
// the message element names differ but the shape is identical.
type itemMutationResponse struct {
	ResponseMessages struct {
		Messages []itemMutationResponseMessage `xml:",any"`
	} `xml:"ResponseMessages"`
}

type itemMutationResponseMessage struct {
	ResponseClass string `xml:"ResponseClass,attr"`
	ResponseCode  string `xml:"ResponseCode"`
	MessageText   string `xml:"MessageText"`
	Items         struct {
		CalendarItem []CalendarItem `xml:"CalendarItem"`
	} `xml:"Items"`
}

// =============================================================================
// SOAP fault
// =============================================================================

type soapFault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}
