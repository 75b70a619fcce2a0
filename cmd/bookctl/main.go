// Command bookctl is a terminal client for the bookstore API.
//
// Usage:
//
//	bookctl [-server URL] <command> [flags]
//
// Commands: register, login, logout, me, list, get, create, update, delete,
// cover, genres, authors.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"bookmarket/pkg/client"
	"bookmarket/pkg/domain"
)

const defaultServer = "http://localhost:5000"

func main() {
	serverURL := flag.String("server", defaultServer, "base URL of the bookstore server")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c := client.New(*serverURL)
	tokenPath, err := tokenFilePath()
	if err != nil {
		fatalf("resolve token path: %v", err)
	}
	restoreSession(ctx, c, tokenPath)

	cmd, cmdArgs := args[0], args[1:]
	if err := run(ctx, c, tokenPath, cmd, cmdArgs); err != nil {
		fatalf("%v", err)
	}
}

func run(ctx context.Context, c *client.Client, tokenPath, cmd string, args []string) error {
	switch cmd {
	case "register":
		return cmdRegister(ctx, c, tokenPath, args)
	case "login":
		return cmdLogin(ctx, c, tokenPath, args)
	case "logout":
		return cmdLogout(ctx, c, tokenPath)
	case "me":
		return cmdMe(ctx, c)
	case "list":
		return cmdList(ctx, c, args)
	case "get":
		return cmdGet(ctx, c, args)
	case "create":
		return cmdCreate(ctx, c, args)
	case "update":
		return cmdUpdate(ctx, c, args)
	case "delete":
		return cmdDelete(ctx, c, args)
	case "cover":
		return cmdCover(ctx, c, args)
	case "genres":
		return cmdStrings(ctx, c.Genres)
	case "authors":
		return cmdStrings(ctx, c.Authors)
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// restoreSession loads a saved token and verifies it. A stale or revoked
// token is discarded quietly; the session just continues anonymous.
func restoreSession(ctx context.Context, c *client.Client, tokenPath string) {
	token, err := client.LoadToken(tokenPath)
	if err != nil || token == "" {
		return
	}
	c.SetToken(token)
	if _, err := c.Me(ctx); err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			c.SetToken("")
			_ = client.ClearToken(tokenPath)
		}
	}
}

func cmdRegister(ctx context.Context, c *client.Client, tokenPath string, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	username := fs.String("username", "", "account username")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	fs.Parse(args)
	result, err := c.Register(ctx, *username, *email, *password)
	if err != nil {
		return err
	}
	if err := client.SaveToken(tokenPath, result.Token); err != nil {
		return err
	}
	fmt.Printf("registered as %s (%s)\n", result.User.Username, result.User.Role)
	return nil
}

func cmdLogin(ctx context.Context, c *client.Client, tokenPath string, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	fs.Parse(args)
	result, err := c.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	if err := client.SaveToken(tokenPath, result.Token); err != nil {
		return err
	}
	fmt.Printf("logged in as %s (%s)\n", result.User.Username, result.User.Role)
	return nil
}

func cmdLogout(ctx context.Context, c *client.Client, tokenPath string) error {
	if c.Token() != "" {
		// best effort: the local token is cleared even if the server call fails
		_ = c.Logout(ctx)
	}
	if err := client.ClearToken(tokenPath); err != nil {
		return err
	}
	fmt.Println("logged out")
	return nil
}

func cmdMe(ctx context.Context, c *client.Client) error {
	user, err := c.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s <%s> role=%s\n", user.Username, user.Email, user.Role)
	return nil
}

func cmdList(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	search := fs.String("search", "", "match title, author, description or genre")
	author := fs.String("author", "", "filter by author")
	genre := fs.String("genre", "", "filter by genre (whole value)")
	year := fs.Int("year", 0, "filter by publication year")
	minPrice := fs.Float64("min-price", 0, "minimum price")
	maxPrice := fs.Float64("max-price", 0, "maximum price")
	limit := fs.Int("limit", 0, "maximum number of results")
	fs.Parse(args)

	listing, err := c.ListBooks(ctx, domain.BookFilter{
		Search:   *search,
		Author:   *author,
		Genre:    *genre,
		Year:     *year,
		MinPrice: *minPrice,
		MaxPrice: *maxPrice,
		Limit:    *limit,
	})
	if err != nil {
		return err
	}
	for _, book := range listing.Books {
		fmt.Printf("%s  %-30s  %-22s  %s  $%.2f\n",
			book.ID, truncate(book.Title, 30), truncate(book.Author, 22), book.Genre, book.Price)
	}
	fmt.Printf("showing %d of %d\n", listing.Showing, listing.Total)
	return nil
}

func cmdGet(ctx context.Context, c *client.Client, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: bookctl get <id>")
	}
	book, err := c.GetBook(ctx, args[0])
	if err != nil {
		return err
	}
	printBook(book)
	return nil
}

func cmdCreate(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	input := client.BookInput{}
	fs.StringVar(&input.Title, "title", "", "book title (required)")
	fs.StringVar(&input.Author, "author", "", "book author (required)")
	fs.StringVar(&input.Genre, "genre", "", "book genre (required)")
	fs.Float64Var(&input.Price, "price", 0, "book price (required)")
	fs.StringVar(&input.ISBN, "isbn", "", "ISBN")
	fs.IntVar(&input.PublishedYear, "year", 0, "publication year")
	fs.StringVar(&input.Description, "description", "", "description")
	fs.IntVar(&input.Pages, "pages", 0, "page count")
	fs.StringVar(&input.Publisher, "publisher", "", "publisher")
	fs.StringVar(&input.Language, "language", "", "language")
	fs.StringVar(&input.Image, "image", "", "cover image URL")
	fs.Parse(args)

	book, err := c.CreateBook(ctx, input)
	if err != nil {
		return err
	}
	fmt.Printf("created %s\n", book.ID)
	return nil
}

func cmdUpdate(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	title := fs.String("title", "", "new title")
	author := fs.String("author", "", "new author")
	genre := fs.String("genre", "", "new genre")
	price := fs.Float64("price", 0, "new price")
	description := fs.String("description", "", "new description")
	stock := fs.Int("stock", 0, "new stock count")
	rating := fs.Float64("rating", 0, "new rating")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: bookctl update [flags] <id>")
	}

	// only flags that were set on the command line become part of the patch
	patch := client.BookPatch{}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "title":
			patch.Title = title
		case "author":
			patch.Author = author
		case "genre":
			patch.Genre = genre
		case "price":
			patch.Price = price
		case "description":
			patch.Description = description
		case "stock":
			patch.Stock = stock
		case "rating":
			patch.Rating = rating
		}
	})

	book, err := c.UpdateBook(ctx, fs.Arg(0), patch)
	if err != nil {
		return err
	}
	fmt.Printf("updated %s\n", book.ID)
	return nil
}

func cmdDelete(ctx context.Context, c *client.Client, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: bookctl delete <id>")
	}
	book, err := c.DeleteBook(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("deleted %q\n", book.Title)
	return nil
}

func cmdCover(ctx context.Context, c *client.Client, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: bookctl cover <id> <image file>")
	}
	f, err := os.Open(args[1])
	if err != nil {
		return err
	}
	defer f.Close()
	book, err := c.UploadCover(ctx, args[0], filepath.Base(args[1]), f)
	if err != nil {
		return err
	}
	fmt.Printf("cover set for %q\n", book.Title)
	return nil
}

func cmdStrings(ctx context.Context, fetch func(context.Context) ([]string, error)) error {
	values, err := fetch(ctx)
	if err != nil {
		return err
	}
	for _, v := range values {
		fmt.Println(v)
	}
	return nil
}

func printBook(b domain.Book) {
	fmt.Printf("ID:        %s\n", b.ID)
	fmt.Printf("Title:     %s\n", b.Title)
	fmt.Printf("Author:    %s\n", b.Author)
	fmt.Printf("Genre:     %s\n", b.Genre)
	fmt.Printf("Price:     $%.2f\n", b.Price)
	if b.ISBN != "" {
		fmt.Printf("ISBN:      %s\n", b.ISBN)
	}
	if b.PublishedYear != 0 {
		fmt.Printf("Published: %d\n", b.PublishedYear)
	}
	if b.Publisher != "" {
		fmt.Printf("Publisher: %s\n", b.Publisher)
	}
	fmt.Printf("Language:  %s\n", b.Language)
	fmt.Printf("Rating:    %.1f\n", b.Rating)
	fmt.Printf("Stock:     %d\n", b.Stock)
	if b.Description != "" {
		fmt.Printf("\n%s\n", b.Description)
	}
}

func tokenFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".bookctl", "token"), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: bookctl [-server URL] <command> [flags]

Commands:
  register   -username -email -password    create an account and log in
  login      -email -password              log in and store the token
  logout                                   invalidate and forget the token
  me                                       show the logged-in account
  list       [filter flags]                list books
  get        <id>                          show one book
  create     [field flags]                 add a book (editor)
  update     [field flags] <id>            change a book (editor)
  delete     <id>                          remove a book (admin)
  cover      <id> <image file>             upload a cover image (editor)
  genres                                   list distinct genres
  authors                                  list distinct authors
`)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "bookctl: "+format+"\n", args...)
	os.Exit(1)
}
