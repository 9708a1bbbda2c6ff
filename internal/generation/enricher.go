package generation

import "strings"

// EnrichRequest applies capability-specific prompt enrichment and returns
// the enriched copy. The original request is never mutated. Faith mode only
// shapes the prompt; it carries no business logic.
func EnrichRequest(req Request) Request {
	switch req.Capability {
	case CapabilityText:
		req.Prompt = enrichText(req)
	case CapabilityImage:
		req.Prompt = enrichImage(req)
	case CapabilityAvatar, CapabilityVideo:
		// Avatar and video backends take style parameters verbatim.
	}
	return req
}

func enrichText(req Request) string {
	var sb strings.Builder

	if req.Style.Tone != "" {
		sb.WriteString("Write in a ")
		sb.WriteString(req.Style.Tone)
		sb.WriteString(" tone. ")
	}
	if req.FaithMode {
		sb.WriteString("Ground the message in scripture-informed encouragement and keep it uplifting. ")
	}
	sb.WriteString(req.Prompt)

	return sb.String()
}

func enrichImage(req Request) string {
	parts := []string{req.Prompt}

	if req.Style.Style != "" {
		parts = append(parts, req.Style.Style+" style")
	}
	if req.FaithMode {
		parts = append(parts, "warm, hopeful atmosphere")
	}

	return strings.Join(parts, ", ")
}
