package api

import (
	"net/http"

	"github.com/coldbrook/fleetwatch/internal/alert"
	"github.com/coldbrook/fleetwatch/internal/fleet"
)

// ContactsHandler serves the SMS contact roster and the sites/alarms it
// derives from the live fleet table.
type ContactsHandler struct {
	contacts *alert.ContactsStore
	fleet    *fleet.Store
}

func NewContactsHandler(contacts *alert.ContactsStore, fleetStore *fleet.Store) *ContactsHandler {
	return &ContactsHandler{contacts: contacts, fleet: fleetStore}
}

// Get implements GET /api/contacts: contacts plus derived sites/alarms.
func (h *ContactsHandler) Get(w http.ResponseWriter, r *http.Request) {
	def, bySite := h.contacts.Snapshot()

	sites := map[string]bool{}
	alarmed := make([]string, 0)
	for _, t := range h.fleet.Snapshot() {
		sites[t.Site] = true
		if t.AlarmActive {
			alarmed = append(alarmed, t.Site)
		}
	}
	siteList := make([]string, 0, len(sites))
	for s := range sites {
		siteList = append(siteList, s)
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"default":        def,
		"bySite":         bySite,
		"sites":          siteList,
		"sitesWithAlarm": alarmed,
	})
}

// contactsSubmission is the POST /api/contacts request body. A non-empty
// Site scopes the update to that site; an empty Site replaces the default.
type contactsSubmission struct {
	Site      string `json:"site"`
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
}

// isValidPhone is a loose sanity check, not a full E.164 validator: the
// spec only requires "validate", and persistence is explicitly optional.
func isValidPhone(s string) bool {
	if s == "" {
		return true
	}
	if len(s) < 7 || len(s) > 20 {
		return false
	}
	for i, r := range s {
		if r == '+' && i == 0 {
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Update implements POST /api/contacts: validates and, since persistence is
// optional (spec §6), applies the change to the in-memory store.
func (h *ContactsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var body contactsSubmission
	if err := DecodeJSON(r, &body); err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "invalid request body")
		return
	}
	if !isValidPhone(body.Primary) || !isValidPhone(body.Secondary) {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidParameter, "invalid phone number")
		return
	}

	c := alert.Contacts{Primary: body.Primary, Secondary: body.Secondary}
	if body.Site == "" {
		h.contacts.SetDefault(c)
	} else {
		h.contacts.SetForSite(body.Site, c)
	}
	WriteSuccess(w, "contacts updated")
}
