package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/ahmetcoskunkizilkaya/postboard/internal/posts"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/state"
	"github.com/fatih/color"
)

var (
	authorStyle = color.New(color.FgCyan, color.Bold)
	likedStyle  = color.New(color.FgGreen, color.Bold)
	mutedStyle  = color.New(color.Faint)
	errorStyle  = color.New(color.FgRed)
	noticeStyle = color.New(color.FgYellow)
)

// Render writes the post list numbered from 1, in the order the store holds it.
// uid marks the caller's likes and deletable entries; "" renders a signed-out view.
func Render(w io.Writer, st posts.State, uid string) {
	switch {
	case st.Status == state.StatusLoading:
		fmt.Fprintln(w, mutedStyle.Sprint("loading posts..."))
		return
	case st.Status == state.StatusFailed:
		fmt.Fprintln(w, errorStyle.Sprint("post feed unavailable"))
	case len(st.Posts) == 0:
		fmt.Fprintln(w, mutedStyle.Sprint("no posts yet"))
		return
	}

	for i, p := range st.Posts {
		fmt.Fprintf(w, "%2d. %s  %s  %s%s\n",
			i+1,
			authorStyle.Sprint(p.AuthorName),
			mutedStyle.Sprint(p.CreatedAt),
			likes(len(p.Likes), p.LikedBy(uid)),
			ownerMark(p.CanDelete(uid)),
		)
		fmt.Fprintf(w, "    %s\n", p.Content)
		for j, c := range p.Comments {
			fmt.Fprintf(w, "      %d) %s: %s  %s%s\n",
				j+1,
				authorStyle.Sprint(c.AuthorName),
				c.Content,
				likes(len(c.Likes), c.LikedBy(uid)),
				ownerMark(p.CanDeleteComment(c, uid)),
			)
		}
	}
}

func likes(n int, liked bool) string {
	label := fmt.Sprintf("likes:%d", n)
	if liked {
		return likedStyle.Sprint(label + "*")
	}
	return label
}

func ownerMark(canDelete bool) string {
	if !canDelete {
		return ""
	}
	return mutedStyle.Sprint("  [del]")
}

const helpText = `commands:
  login                         sign in
  logout                        sign out
  whoami                        show the signed-in user
  list                          show posts, newest first
  fetch                         reload posts once, or reopen a failed feed
  resubscribe                   reopen the live post feed
  post <text>                   create a post
  like <post>                   like or unlike a post
  delete <post>                 delete your post
  comment <post> <text>         comment on a post
  clike <post> <comment>        like or unlike a comment
  uncomment <post> <comment>    delete a comment
  help                          show this text
  quit                          leave
<post> and <comment> are list numbers or ids.`

func usage(w io.Writer) {
	fmt.Fprintln(w, strings.TrimSpace(helpText))
}
