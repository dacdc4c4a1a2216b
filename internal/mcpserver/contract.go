package mcpserver

// NoteFormatContract describes the Markdown note format Ansuz reads, so LLM
// consumers know which fields drive search, links and tags.
const NoteFormatContract = `# Ansuz Note Format Contract

Ansuz reads every ` + "`" + `.md` + "`" + ` file under the vault as one note. Folders are scopes.

## Structure

` + "```" + `markdown
---
title: Human-readable title        # OPTIONAL – falls back to the first "# " heading, then the file name
tags:                               # OPTIONAL – YAML list of strings (a single string is one tag)
  - tag-one
  - tag-two
linked_notes:                       # OPTIONAL – declared links, note IDs without .md
  - other-note
created_at: 2025-01-15T09:30:00Z    # OPTIONAL – RFC 3339 or YYYY-MM-DD
updated_at: 2025-01-20              # OPTIONAL – defaults to the file modification time
---

Body text in standard Markdown.

Use [[wikilinks]] to reference other notes (without .md extension).
Use [[target|alias]] or [[target#heading]]; only the target counts as a link.
Inline #tags in the body are added to the tag list.
` + "```" + `

## Rules

1. **Note IDs** are file names without ` + "`" + `.md` + "`" + `. They must be unique within a scope;
   when two files share an ID, the first in path order wins and the other is skipped.
2. **Links** come from ` + "`" + `linked_notes` + "`" + ` (alias ` + "`" + `links` + "`" + `) first, then body wikilinks, without duplicates.
   Folder parts are ignored: ` + "`" + `[[folder/note]]` + "`" + ` links to ` + "`" + `note` + "`" + `.
3. **Scope links** written ` + "`" + `[[kb:folder]]` + "`" + ` point at a folder and are not note links.
4. **Orphans** are notes whose links name notes that do not exist.
5. **Encoding** is UTF-8. Files with invalid UTF-8, NUL bytes, broken YAML, an unclosed
   ` + "`" + `---` + "`" + ` fence or non-list tags are skipped and reported as warnings.
6. **Hidden** files and folders (starting with ` + "`" + `.` + "`" + `) are ignored.

## Example

` + "```" + `markdown
---
title: Weekly standup 2025-01-20
tags:
  - meeting-notes
  - project-x
linked_notes:
  - design-doc
created_at: 2025-01-20
---

# Weekly standup 2025-01-20

## Action items

- [[alice]] to review the [[design-doc]]
- Bob to update [[roadmap|the roadmap]] #followup
` + "```" + `
`
