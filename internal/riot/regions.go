package riot

import (
	"fmt"
	"strings"

	"summoner-insights/internal/fault"
)

// Platform regions map to the regional cluster that serves account-v1 and
// match-v5.
var regionalRoutes = map[string]string{
	"na1":  "americas",
	"br1":  "americas",
	"la1":  "americas",
	"la2":  "americas",
	"oc1":  "sea",
	"ph2":  "sea",
	"sg2":  "sea",
	"th2":  "sea",
	"tw2":  "sea",
	"vn2":  "sea",
	"euw1": "europe",
	"eun1": "europe",
	"tr1":  "europe",
	"ru":   "europe",
	"me1":  "europe",
	"kr":   "asia",
	"jp1":  "asia",
}

// RegionalRoute returns the routing cluster for a platform region such as "euw1".
func RegionalRoute(platform string) (string, error) {
	route, ok := regionalRoutes[strings.ToLower(strings.TrimSpace(platform))]
	if !ok {
		return "", fault.Validation("unknown region %q", platform)
	}
	return route, nil
}

func regionalBaseURL(platform string) (string, error) {
	route, err := RegionalRoute(platform)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("https://%s.api.riotgames.com", route), nil
}

func platformBaseURL(platform string) string {
	return fmt.Sprintf("https://%s.api.riotgames.com", strings.ToLower(platform))
}

// ParseRiotID splits "GameName#TAG" into its two parts.
func ParseRiotID(riotID string) (name, tag string, err error) {
	i := strings.LastIndex(riotID, "#")
	if i <= 0 || i == len(riotID)-1 {
		return "", "", fault.Validation("riot id %q must look like Name#TAG", riotID)
	}
	return strings.TrimSpace(riotID[:i]), strings.TrimSpace(riotID[i+1:]), nil
}
