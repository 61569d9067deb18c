package prompt

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/releasedraft/releasedraft/internal/request"
)

// templateSection is one entry of a TemplateSpec's parsed content.
type templateSection struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Prompt string `json:"prompt"`
}

// writeTemplate appends template guidance to the system prompt. A string
// hint is soft guidance; a structured spec is a strict requirement block.
func writeTemplate(b *strings.Builder, tmpl request.Template) {
	switch t := tmpl.(type) {
	case request.TemplateHint:
		if t == "" {
			return
		}
		b.WriteString("\nTemplate structure (guidance, adapt as needed):\n")
		b.WriteString(string(t))
		b.WriteString("\n")
	case request.TemplateSpec:
		writeTemplateSpec(b, t)
	}
}

func writeTemplateSpec(b *strings.Builder, spec request.TemplateSpec) {
	b.WriteString("\nTEMPLATE REQUIREMENTS\n")
	if spec.Name != "" {
		fmt.Fprintf(b, "Template structure: %s\n", spec.Name)
	}
	b.WriteString("Follow this template exactly. Produce every required section below:\n")

	sections, err := parseTemplateSections(spec.Content)
	if err != nil || len(sections) == 0 {
		if err != nil {
			log.Printf("template %q content not parseable: %v", spec.Name, err)
		}
		b.WriteString("No specific sections defined.\n")
	} else {
		for i, s := range sections {
			fmt.Fprintf(b, "%d. %s", i+1, s.Name)
			if s.Type != "" {
				fmt.Fprintf(b, " [%s]", s.Type)
			}
			if s.Prompt != "" {
				fmt.Fprintf(b, ": %s", s.Prompt)
			}
			b.WriteString("\n")
		}
	}

	if spec.ExampleOutput != "" {
		fmt.Fprintf(b, "\nExample output for this template:\n%s\n", spec.ExampleOutput)
	}
	if spec.SystemPrompt != "" {
		fmt.Fprintf(b, "\n%s\n", spec.SystemPrompt)
	}
}

// parseTemplateSections decodes spec content as either a bare JSON array of
// sections or an object wrapping one under "sections". Failure here never
// aborts a build; the caller degrades to "no specific sections defined".
func parseTemplateSections(content string) ([]templateSection, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil
	}

	var sections []templateSection
	if err := json.Unmarshal([]byte(content), &sections); err == nil {
		return sections, nil
	}

	var wrapper struct {
		Sections []templateSection `json:"sections"`
	}
	if err := json.Unmarshal([]byte(content), &wrapper); err != nil {
		return nil, fmt.Errorf("parsing template sections: %w", err)
	}
	return wrapper.Sections, nil
}
