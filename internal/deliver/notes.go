package deliver

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// AppleNotes creates or overwrites a single note holding the digest
// HTML, via the Notes scripting interface. The note title comes from a
// template where {date} expands to the run date.
type AppleNotes struct {
	TitleTemplate string
}

func NewAppleNotes(titleTemplate string) *AppleNotes {
	return &AppleNotes{TitleTemplate: titleTemplate}
}

func (n *AppleNotes) Name() string { return "apple-notes" }

func (n *AppleNotes) Title(date string) string {
	return strings.ReplaceAll(n.TitleTemplate, "{date}", date)
}

func (n *AppleNotes) Deliver(ctx context.Context, htmlPath, date string) error {
	if runtime.GOOS != "darwin" {
		return fmt.Errorf("deliver: Apple Notes delivery requires macOS")
	}

	html, err := os.ReadFile(htmlPath)
	if err != nil {
		return fmt.Errorf("deliver: failed to read %s: %w", htmlPath, err)
	}

	script := notesScript(n.Title(date))
	cmd := exec.CommandContext(ctx, "osascript", "-l", "JavaScript", "-e", script)
	cmd.Stdin = strings.NewReader(string(html))
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("deliver: osascript failed: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// notesScript builds a JXA program that upserts a note with the given
// title in the iCloud account's default folder, reading the note body
// from stdin.
func notesScript(title string) string {
	return fmt.Sprintf(`
(() => {
  ObjC.import('Foundation');
  const stdin = $.NSFileHandle.fileHandleWithStandardInput;
  const data = stdin.readDataToEndOfFile;
  const html = $.NSString.alloc.initWithDataEncoding(data, $.NSUTF8StringEncoding).js;
  const desiredTitle = %q;

  const app = Application('Notes');
  const accounts = app.accounts();
  const icloud = accounts.find(a => /icloud/i.test(a.name())) || accounts[0];
  const folders = icloud ? icloud.folders() : app.folders();
  const notesFolder = folders.find(f => f.name() === 'Notes') || folders[0];

  let note = notesFolder.notes().find(n => n.name() === desiredTitle);
  if (!note) {
    note = app.Note({name: desiredTitle, body: html});
    notesFolder.notes.push(note);
  } else {
    note.body = html;
  }
})();
`, title)
}
