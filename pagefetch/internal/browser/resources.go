package browser

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// applyResourceBlocking fails requests of the configured resource types.
// Quiz data is in the document and its scripts, never in images or fonts.
func applyResourceBlocking(page *rod.Page, types []string) error {
	blockSet := make(map[string]bool, len(types))
	for _, t := range types {
		blockSet[strings.ToLower(strings.TrimSpace(t))] = true
	}

	router := page.HijackRequests()
	if err := router.Add("*", "", func(h *rod.Hijack) {
		if shouldBlock(blockSet, h.Request.Type()) {
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

// shouldBlock maps a CDP resource type to the plural config names.
func shouldBlock(blockSet map[string]bool, resType proto.NetworkResourceType) bool {
	switch resType {
	case proto.NetworkResourceTypeImage:
		return blockSet["images"]
	case proto.NetworkResourceTypeFont:
		return blockSet["fonts"]
	case proto.NetworkResourceTypeMedia:
		return blockSet["media"]
	case proto.NetworkResourceTypeStylesheet:
		return blockSet["stylesheets"]
	}
	return blockSet[strings.ToLower(string(resType))]
}
