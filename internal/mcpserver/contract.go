package mcpserver

// NoteFormatContract describes the Markdown note format that LLM consumers
// should follow when creating notes.
const NoteFormatContract = `# xnote Note Format

Notes live in a single JSON store. Each note has a **name** and a Markdown
body; the rich-text view the app shows is derived from the Markdown.

## Names

1. Names are unique **case-insensitively**: "Plan" and "plan" are the same note.
2. Creating a note whose name already exists fails unless ` + "`force`" + ` is set,
   in which case the existing note is replaced in place.
3. Names may contain any characters, including ` + "`/`" + `.

## Body

` + "```" + `markdown
---
tags: [project-x, meeting-notes]   # OPTIONAL – YAML list or comma string
---

# Heading

Body text in standard Markdown.

Use [[Other Note]] to reference other notes by name.
Use [[Other Note|alias]] for display text that differs from the target.
Inline #tags are indexed too.
` + "```" + `

## Rules

1. **Frontmatter is optional.** When present, the ` + "`---`" + ` fence must be the
   first line.
2. **Tags** are matched lowercase; prefer kebab-case (` + "`project-x`" + `).
3. **Wikilinks** target note names, not file paths. Backlinks are computed
   from them.
4. Links, tags and headings inside fenced code blocks are ignored.
5. **No HTML** unless absolutely necessary; prefer Markdown equivalents.

## Images

- Store images with the ` + "`save_image`" + ` tool. It returns a ` + "`markdownImage`" + `
  field ready to paste into the note body.
- Images are kept in the data directory's ` + "`images/`" + ` folder under generated
  names; the name you supply is not used.

## Example

` + "```" + `markdown
---
tags: [meeting-notes]
---

# Weekly standup 2025-01-20

- [[Alice]] to review the [[Design Doc]]
- Bob to update [[Roadmap|the roadmap]] #project-x
` + "```" + `
`
