package gitrepo

import (
	"fmt"
	"strings"
)

const (
	currentDirectoryPrefixConstant = "./"
	parentDirectoryPrefixConstant  = "../"
	pathSeparatorConstant          = "/"
	scpPathDelimiterConstant       = ":"
	schemeDelimiterConstant        = "://"
	remoteURLErrorTemplateConstant = "%s: %s"
	requiredValueMessageConstant   = "value is required"
	unresolvableURLMessageConstant = "relative url climbs above its base"
)

// RemoteURLResolutionError indicates a relative reference url could not be applied to its base.
type RemoteURLResolutionError struct {
	Input   string
	Message string
}

// Error describes the resolution failure.
func (resolutionError RemoteURLResolutionError) Error() string {
	return fmt.Sprintf(remoteURLErrorTemplateConstant, resolutionError.Input, resolutionError.Message)
}

// IsRelativeURL reports whether the url starts with ./ or ../ and therefore depends on the parent's remote.
func IsRelativeURL(candidateURL string) bool {
	trimmedURL := strings.TrimSpace(candidateURL)
	return strings.HasPrefix(trimmedURL, currentDirectoryPrefixConstant) || strings.HasPrefix(trimmedURL, parentDirectoryPrefixConstant)
}

// ResolveRelativeURL applies a ./ or ../ url to the base url the way git resolves submodule urls.
// Each ../ strips one path component from the base; scp-like bases treat the colon as a separator.
// Urls that are not relative are returned unchanged.
func ResolveRelativeURL(baseURL string, candidateURL string) (string, error) {
	trimmedCandidate := strings.TrimSpace(candidateURL)
	if len(trimmedCandidate) == 0 {
		return "", RemoteURLResolutionError{Input: candidateURL, Message: requiredValueMessageConstant}
	}
	if !IsRelativeURL(trimmedCandidate) {
		return trimmedCandidate, nil
	}

	base := strings.TrimRight(strings.TrimSpace(baseURL), pathSeparatorConstant)
	if len(base) == 0 {
		return "", RemoteURLResolutionError{Input: baseURL, Message: requiredValueMessageConstant}
	}

	remainder := trimmedCandidate
	for {
		switch {
		case strings.HasPrefix(remainder, currentDirectoryPrefixConstant):
			remainder = strings.TrimPrefix(remainder, currentDirectoryPrefixConstant)
		case strings.HasPrefix(remainder, parentDirectoryPrefixConstant):
			remainder = strings.TrimPrefix(remainder, parentDirectoryPrefixConstant)
			strippedBase, stripped := stripLastComponent(base)
			if !stripped {
				return "", RemoteURLResolutionError{Input: candidateURL, Message: unresolvableURLMessageConstant}
			}
			base = strippedBase
		default:
			if strings.HasSuffix(base, scpPathDelimiterConstant) {
				return base + remainder, nil
			}
			return base + pathSeparatorConstant + remainder, nil
		}
	}
}

func stripLastComponent(base string) (string, bool) {
	schemeEnd := 0
	if schemeIndex := strings.Index(base, schemeDelimiterConstant); schemeIndex >= 0 {
		schemeEnd = schemeIndex + len(schemeDelimiterConstant)
	}
	pathPart := base[schemeEnd:]

	separatorIndex := strings.LastIndex(pathPart, pathSeparatorConstant)
	if separatorIndex > 0 {
		return base[:schemeEnd+separatorIndex], true
	}
	if schemeEnd == 0 {
		if colonIndex := strings.LastIndex(pathPart, scpPathDelimiterConstant); colonIndex > 0 {
			return base[:colonIndex+1], true
		}
	}
	return "", false
}
