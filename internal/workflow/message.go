package workflow

import (
	"errors"

	"github.com/Hansil-Chapadiya/problems-analyzer/internal/analysis"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/archive"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/catalog"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/remote"
)

// Message converts an error from any stage into text fit to show a user.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var ve *catalog.ValidationError
	if errors.As(err, &ve) {
		if ve.Reason == catalog.MissingSkill {
			return "Please select a skill level."
		}
		return ve.Error() + "."
	}

	switch {
	case errors.Is(err, ErrNoCorrelationID), errors.Is(err, analysis.ErrEmptyID):
		return "Invalid analysis ID. Please go back and try again."
	case errors.Is(err, ErrBusy):
		return "A request is already in progress."
	case errors.Is(err, archive.ErrNoImagesFound):
		return "No images found in the analysis file."
	}

	var fe *remote.FetchError
	if errors.As(err, &fe) {
		switch fe.Kind {
		case remote.KindUnauthenticated:
			return "You are not signed in. Set a session token and try again."
		case remote.KindDecode:
			return "The analysis file could not be read."
		}
		base := "Failed to fetch problems."
		if fe.Op == "analysis" {
			base = "Failed to fetch analysis data."
		}
		if fe.Kind == remote.KindService && fe.Message != "" {
			return base + " " + fe.Message
		}
		return base
	}
	return "Something went wrong."
}
