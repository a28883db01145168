package web

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

const pageHead = `<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>`

// Status lists the live rooms on this instance.
func Status(data StatusData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(pageHead)
		b.WriteString(esc(data.Service))
		b.WriteString(`</title>
  </head>
  <body>
    <main>
      <h1>`)
		b.WriteString(esc(data.Service))
		b.WriteString(`</h1>
      <p>`)
		b.WriteString(itoa(data.Puzzles))
		b.WriteString(` puzzles loaded. Updated `)
		b.WriteString(formatTime(data.Generated))
		b.WriteString(`.</p>
`)
		if len(data.Rooms) == 0 {
			b.WriteString("      <p>No rooms yet.</p>\n")
		} else {
			b.WriteString(`      <table>
        <thead><tr><th>ID</th><th>Code</th><th>Name</th><th>Participants</th><th>Teams</th><th>Connected</th><th>Round</th></tr></thead>
        <tbody>
`)
			for _, room := range data.Rooms {
				state := "idle"
				if room.RoundActive {
					state = "in progress"
				}
				b.WriteString("          <tr><td>")
				b.WriteString(utoa(room.ID))
				b.WriteString("</td><td>")
				b.WriteString(esc(room.Code))
				b.WriteString("</td><td>")
				b.WriteString(esc(room.Name))
				b.WriteString("</td><td>")
				b.WriteString(itoa(room.Participants))
				b.WriteString("</td><td>")
				b.WriteString(itoa(room.Teams))
				b.WriteString("</td><td>")
				b.WriteString(itoa(room.Connected))
				b.WriteString("</td><td>")
				b.WriteString(state)
				b.WriteString("</td></tr>\n")
			}
			b.WriteString("        </tbody>\n      </table>\n")
		}
		b.WriteString("    </main>\n  </body>\n</html>\n")
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// Join is the landing page a room's QR code points at.
func Join(code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(pageHead)
		b.WriteString(`Join a room</title>
  </head>
  <body>
    <main>
      <h1>Join a room</h1>
      <form id="joinForm">
        <input name="code" placeholder="Room code" autocomplete="off" maxlength="6" value="`)
		b.WriteString(esc(code))
		b.WriteString(`" required/>
        <input name="name" placeholder="Your name" autocomplete="name" maxlength="24" required/>
        <button type="submit">Join</button>
      </form>
      <p id="joinResult"></p>
    </main>
    <script>
      const form = document.getElementById("joinForm");
      const result = document.getElementById("joinResult");
      form.addEventListener("submit", async (event) => {
        event.preventDefault();
        const body = {
          code: form.elements.code.value.trim().toUpperCase(),
          name: form.elements.name.value.trim(),
          session_token: localStorage.getItem("ladderSession") || ""
        };
        const res = await fetch("/api/join", {
          method: "POST",
          headers: { "Content-Type": "application/json" },
          body: JSON.stringify(body)
        });
        const data = await res.json();
        if (!res.ok) {
          result.textContent = data.error || "Could not join.";
          return;
        }
        localStorage.setItem("ladderSession", data.session_token);
        result.textContent = "Joined " + data.room.name + " as " + data.participant.name + ".";
      });
    </script>
  </body>
</html>
`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}
