// internal/service/template.go
package service

import "strings"

// RenderTemplate substitutes {placeholder} variables into a content blob.
func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

func (s *CampaignService) templateVars(firstName, unsubscribeToken string) map[string]string {
	if firstName == "" {
		firstName = "there"
	}
	return map[string]string{
		"first_name":      firstName,
		"unsubscribe_url": strings.TrimRight(s.UnsubscribeBaseURL, "/") + "/" + unsubscribeToken,
	}
}
