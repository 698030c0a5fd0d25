package event

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// MaxEventNameLength is the analytics platform limit for event names
	MaxEventNameLength = 40

	// MaxConfiguredNameLength leaves room for the "AM_" prefix and the
	// longest suffix when a unit name or placement becomes part of an event name.
	MaxConfiguredNameLength = 23
)

var namePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// reservedNames are analytics platform event names that must not be reused,
// compared case-insensitively.
var reservedNames = map[string]struct{}{
	"ad_click": {}, "ad_exposure": {}, "ad_impression": {}, "ad_query": {}, "ad_reward": {},
	"app_clear_data": {}, "app_exception": {}, "app_remove": {}, "app_store_refund": {},
	"app_store_subscription_cancel": {}, "app_store_subscription_convert": {},
	"app_store_subscription_renew": {}, "app_update": {}, "app_upgrade": {}, "begin_checkout": {},
	"campaign_details": {}, "checkout_progress": {}, "earn_virtual_currency": {}, "ecommerce_purchase": {},
	"generate_lead": {}, "join_group": {}, "level_end": {}, "level_start": {}, "level_up": {},
	"login": {}, "post_score": {}, "purchase_refund": {}, "search": {}, "select_content": {},
	"set_checkout_option": {}, "share": {}, "sign_up": {}, "spend_virtual_currency": {},
	"tutorial_begin": {}, "tutorial_complete": {}, "unlock_achievement": {}, "view_item": {},
	"view_item_list": {}, "view_search_results": {}, "session_start": {}, "app_open": {},
}

// CheckName reports why name is not a valid analytics identifier, or nil.
func CheckName(name string, limit int) error {
	switch {
	case name == "":
		return fmt.Errorf("name is empty")
	case len(name) > limit:
		return fmt.Errorf("name %q is longer than %d characters", name, limit)
	case strings.Contains(name, " "):
		return fmt.Errorf("name %q contains spaces", name)
	case !namePattern.MatchString(name):
		return fmt.Errorf("name %q must match %s", name, namePattern.String())
	}
	if _, reserved := reservedNames[strings.ToLower(name)]; reserved {
		return fmt.Errorf("name %q is reserved by the analytics platform", name)
	}
	return nil
}
