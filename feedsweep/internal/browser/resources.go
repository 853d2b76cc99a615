// CLAUDE:SUMMARY Blocks configured resource types (images, fonts, media, stylesheets) on the feed page via request hijacking.
package browser

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// applyResourceBlocking fails requests whose resource type is listed in
// types. Configuration uses plural names (images, fonts); CDP reports
// singular ones.
func applyResourceBlocking(page *rod.Page, types []string) error {
	blocked := make(map[string]bool, len(types))
	for _, t := range types {
		blocked[strings.ToLower(t)] = true
	}

	router := page.HijackRequests()
	if err := router.Add("*", "", func(h *rod.Hijack) {
		if shouldBlock(blocked, string(h.Request.Type())) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	}); err != nil {
		return err
	}
	go router.Run()
	return nil
}

func shouldBlock(blocked map[string]bool, resType string) bool {
	lower := strings.ToLower(resType)
	switch lower {
	case "image", "font", "stylesheet":
		return blocked[lower+"s"] || blocked[lower]
	}
	return blocked[lower]
}
