/*
Package template renders prompt templates from state fields.

# Overview

A Template holds text with ${field} placeholders. Placeholders name state
fields, or dotted paths into map-valued fields:

	t := template.Parse("Summarize ${section.title}:\n${section.content}")
	prompt, err := t.Render(s.Values())

Templates are parsed once, usually when a workflow is built, and are safe
for concurrent use.

# Values

Strings render verbatim. []string values render one per line, each
prefixed with "- ". Everything else renders with %v.

# Missing Variables

By default a placeholder with no value is an error, so a prompt is never
sent with a hole in it:

	_, err := t.Render(nil)
	// err: undefined variable: section.title

Configure behavior with options:

	t := template.Parse("Hi ${name}", template.WithMissingAction(template.MissingEmpty))

# Schema Checks

Check reports placeholders whose root field is not in a schema, so typos
fail when the workflow is built rather than on the first run:

	if err := t.Check(schema); err != nil {
	    return err
	}
*/
package template
