package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/brontes/usereditor/internal/model"
	"github.com/brontes/usereditor/internal/serializer"
	"github.com/brontes/usereditor/internal/service"
	"github.com/brontes/usereditor/internal/store"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
		Long:  "Create, list, and maintain user accounts directly against the store.",
	}

	cmd.AddCommand(newUserCreateCmd())
	cmd.AddCommand(newUserListCmd())
	cmd.AddCommand(newUserVerifyEmailCmd())

	return cmd
}

// ---------- user create ----------

func newUserCreateCmd() *cobra.Command {
	var (
		username  string
		password  string
		email     string
		firstName string
		lastName  string
		staff     bool
		superuser bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new user account",
		Example: `  usereditor user create --username jdoe --email jdoe@example.com --staff
  usereditor user create --username jdoe  # prompts for password`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserCreate(username, password, email, firstName, lastName, staff, superuser)
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Username (required)")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted if omitted)")
	cmd.Flags().StringVar(&email, "email", "", "E-mail address, recorded as an unverified primary address")
	cmd.Flags().StringVar(&firstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "Last name")
	cmd.Flags().BoolVar(&staff, "staff", false, "Grant staff access")
	cmd.Flags().BoolVar(&superuser, "superuser", false, "Grant superuser access")
	cmd.MarkFlagRequired("username")

	return cmd
}

func runUserCreate(username, password, email, firstName, lastName string, staff, superuser bool) error {
	if model.IsReservedUsername(username) {
		return fmt.Errorf("username %q is reserved", username)
	}

	if password == "" {
		fmt.Print("Password: ")
		pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()
		password = string(pwBytes)

		fmt.Print("Confirm password: ")
		confirmBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		fmt.Println()

		if password != string(confirmBytes) {
			return fmt.Errorf("passwords do not match")
		}
	}

	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	hash, err := service.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		Username:     username,
		PasswordHash: hash,
		FirstName:    firstName,
		LastName:     lastName,
		IsStaff:      staff,
		IsSuperuser:  superuser,
		IsActive:     true,
	}
	if err := st.CreateUser(context.Background(), u, email); err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	fmt.Printf("Created user %q (id %d)\n", username, u.ID)
	return nil
}

// ---------- user list ----------

func newUserListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List user accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runUserList(jsonOutput bool) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	users, _, err := st.ListUsers(context.Background(), store.ListOptions{Limit: 1000})
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	ser := serializer.New(st)

	if jsonOutput {
		rows := make([]map[string]interface{}, 0, len(users))
		for i := range users {
			rows = append(rows, ser.Represent(&users[i]))
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tNAME\tEMAIL\tVERIFIED\tSTAFF\tACTIVE")
	for i := range users {
		u := &users[i]
		email, verified := serializer.EffectiveEmail(u)
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%v\t%v\t%v\n",
			u.ID, u.Username, u.FullName(), email, verified, u.IsStaff, u.IsActive)
	}
	return w.Flush()
}

// ---------- user verify-email ----------

func newUserVerifyEmailCmd() *cobra.Command {
	var (
		username string
		email    string
	)

	cmd := &cobra.Command{
		Use:   "verify-email",
		Short: "Mark a user's e-mail address as verified",
		Long:  "Marks an already recorded e-mail address as verified, standing in for a confirmation-mail round trip.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserVerifyEmail(username, email)
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Username (required)")
	cmd.Flags().StringVar(&email, "email", "", "E-mail address to mark verified (required)")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("email")

	return cmd
}

func runUserVerifyEmail(username, email string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	u, err := st.GetUserByUsername(context.Background(), username)
	if err != nil {
		return fmt.Errorf("lookup user %q: %w", username, err)
	}

	if err := st.MarkEmailVerified(context.Background(), u.ID, email); err != nil {
		return fmt.Errorf("verify e-mail: %w", err)
	}

	fmt.Printf("Marked %s as verified for %q\n", email, username)
	return nil
}
