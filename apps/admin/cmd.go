package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/pkg/errors"
	"golang.org/x/term"

	echoapi "github.com/sameeradaveen/lms-new-main/apps/api/echo"
	"github.com/sameeradaveen/lms-new-main/core"
	"github.com/sameeradaveen/lms-new-main/core/collab"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf   *core.Config
	client *http.Client
	out    io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  token -username USERNAME [-roles ROLE,...] - issue an admin API token")
	fmt.Println("  rooms -addr URL - list the active rooms (the token will be prompted)")
	fmt.Println("  roster -addr URL -room ROOM_ID - list the users of a room (the token will be prompted)")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenUname := tokenCmd.String("username", "", "The operator's name, recorded in the token.")
	tokenRoles := tokenCmd.String("roles", "", "Comma separated roles granted by the token.")

	roomsCmd := flag.NewFlagSet("rooms", flag.ContinueOnError)
	roomsAddr := roomsCmd.String("addr", "http://localhost:5000", "The API base URL.")

	rosterCmd := flag.NewFlagSet("roster", flag.ContinueOnError)
	rosterAddr := rosterCmd.String("addr", "http://localhost:5000", "The API base URL.")
	rosterRoom := rosterCmd.String("room", "", "The room ID.")

	switch args[1] {
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		uname := core.CleanString(*tokenUname)
		if uname == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.issueToken(uname, splitRoles(*tokenRoles))

	case "rooms":
		if err := roomsCmd.Parse(args[2:]); err != nil {
			return err
		}
		token, err := promptToken()
		if err != nil {
			return err
		}
		if token == "" {
			roomsCmd.Usage()
			return errHelp
		}
		return cli.listRooms(*roomsAddr, token)

	case "roster":
		if err := rosterCmd.Parse(args[2:]); err != nil {
			return err
		}
		room := core.CleanString(*rosterRoom)
		if room == "" {
			rosterCmd.Usage()
			return errHelp
		}
		token, err := promptToken()
		if err != nil {
			return err
		}
		if token == "" {
			rosterCmd.Usage()
			return errHelp
		}
		return cli.listRoster(*rosterAddr, room, token)

	default:
		cli.printUsage()
		return errHelp
	}
}

func promptToken() (string, error) {
	fmt.Print("Enter token:")
	token, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", errors.Wrap(err, "reading token")
	}
	return strings.TrimSpace(string(token)), nil
}

func splitRoles(s string) []string {
	var roles []string
	for _, r := range strings.Split(s, ",") {
		if r = core.CleanString(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

func (cli *commandLine) issueToken(uname string, roles []string) error {
	token, err := echoapi.GenerateToken(echoapi.NewAdminClaims(uname, cli.conf, roles...), cli.conf.SecretKey)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	_, err = fmt.Fprintln(cli.out, token)
	return err
}

func (cli *commandLine) listRooms(addr, token string) error {
	var rooms []collab.RoomSummary
	if err := cli.get(addr, "/v1/rooms", token, &rooms); err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ROOM\tUSERS")
	for _, r := range rooms {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", r.RoomID, r.Users)
	}
	return w.Flush()
}

func (cli *commandLine) listRoster(addr, roomID, token string) error {
	var users []collab.Connection
	if err := cli.get(addr, "/v1/rooms/"+url.PathEscape(roomID)+"/users", token, &users); err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOCKET\tUSERNAME\tSTATUS\tTYPING\tFILE")
	for _, u := range users {
		file := "-"
		if u.CurrentFile.Valid {
			file = u.CurrentFile.String
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", u.ConnectionID, u.Username, u.Status, u.Typing, file)
	}
	return w.Flush()
}

// get calls the admin API and decodes its JSON response into v.
func (cli *commandLine) get(addr, path, token string, v interface{}) error {
	req, err := http.NewRequest(http.MethodGet, strings.TrimRight(addr, "/")+path, nil)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := cli.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "calling "+path)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return errors.Errorf("%s: %d %s", path, resp.StatusCode, apiErr.Error)
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(v), "decoding response")
}
