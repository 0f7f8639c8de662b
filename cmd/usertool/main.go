// usertool manages the local users file consumed by the "local"
// authentication plugin.
//
// Usage:
//
//	usertool -file ./data/users.json list
//	usertool -file ./data/users.json add <username> <password> [role]
//	usertool -file ./data/users.json passwd <username> <password>
//	usertool -file ./data/users.json remove <username>
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/openmark/openmark/internal/plugin/auth"
)

func main() {
	file := flag.String("file", "./data/users.json", "path to the users file")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	uf, err := auth.LoadUsersFile(*file)
	if os.IsNotExist(err) {
		uf = &auth.UsersFile{}
	} else if err != nil {
		log.Fatalf("reading users file: %v", err)
	}

	switch args[0] {
	case "list":
		if len(uf.Users) == 0 {
			fmt.Println("no users")
			return
		}
		for _, u := range uf.Users {
			fmt.Printf("%-20s %s\n", u.Username, u.Role)
		}
		return

	case "add":
		if len(args) < 3 {
			usage()
		}
		username, password := args[1], args[2]
		role := "user"
		if len(args) > 3 {
			role = args[3]
		}
		if role != "user" && role != "admin" {
			log.Fatalf("role must be user or admin, got %q", role)
		}
		for _, u := range uf.Users {
			if u.Username == username {
				log.Fatalf("user %q already exists", username)
			}
		}
		uf.Users = append(uf.Users, auth.User{
			Username:     username,
			PasswordHash: auth.HashPassword(password),
			Role:         role,
		})

	case "passwd":
		if len(args) < 3 {
			usage()
		}
		username, password := args[1], args[2]
		found := false
		for i := range uf.Users {
			if uf.Users[i].Username == username {
				uf.Users[i].PasswordHash = auth.HashPassword(password)
				found = true
				break
			}
		}
		if !found {
			log.Fatalf("user %q not found", username)
		}

	case "remove":
		if len(args) < 2 {
			usage()
		}
		username := args[1]
		kept := uf.Users[:0]
		found := false
		for _, u := range uf.Users {
			if u.Username == username {
				found = true
				continue
			}
			kept = append(kept, u)
		}
		if !found {
			log.Fatalf("user %q not found", username)
		}
		uf.Users = kept

	default:
		usage()
	}

	if err := auth.SaveUsersFile(*file, uf); err != nil {
		log.Fatalf("writing users file: %v", err)
	}
	fmt.Println("ok")
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: usertool [-file path] list | add <user> <pass> [role] | passwd <user> <pass> | remove <user>")
	os.Exit(2)
}
