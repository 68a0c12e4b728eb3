package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newUserCmd() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "User management",
	}
	userCmd.AddCommand(userCreateCmd, userListCmd, userResetPwdCmd)
	return userCmd
}

// readPassword prompts twice with hidden input
func readPassword(prompt string) string {
	fmt.Print(prompt)
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fail("failed to read password: %v", err)
	}
	fmt.Println()
	password := string(passwordBytes)
	if len(password) < 6 {
		fail("password must be at least 6 characters")
	}

	fmt.Print("Repeat password: ")
	confirmBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fail("failed to read password: %v", err)
	}
	fmt.Println()
	if password != string(confirmBytes) {
		fail("passwords do not match")
	}
	return password
}

func readLine(reader *bufio.Reader, prompt string) string {
	fmt.Print(prompt)
	line, err := reader.ReadString('\n')
	if err != nil {
		fail("failed to read input: %v", err)
	}
	return strings.TrimSpace(line)
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user",
	Long:  `Interactively create a user. The user's mailbox is provisioned on the internal domain.`,
	Run: func(cmd *cobra.Command, args []string) {
		reader := bufio.NewReader(os.Stdin)

		username := readLine(reader, "Username: ")
		if username == "" {
			fail("username must not be empty")
		}
		password := readPassword("Password (at least 6 characters): ")
		nickname := readLine(reader, "Nickname (optional): ")
		if nickname == "" {
			nickname = username
		}

		newUser, err := app.Users.CreateUser(context.Background(), username, password, nickname)
		if err != nil {
			fail("failed to create user: %v", err)
		}
		acc, err := app.Accounts.GetOrCreateForUser(context.Background(), newUser)
		if err != nil {
			fail("user created but mailbox provisioning failed: %v", err)
		}

		fmt.Println()
		fmt.Println("User created.")
		fmt.Printf("  ID:       %d\n", newUser.ID)
		fmt.Printf("  Username: %s\n", newUser.Username)
		fmt.Printf("  Nickname: %s\n", newUser.Nickname)
		fmt.Printf("  Mailbox:  %s\n", acc.EmailAddress)
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	Run: func(cmd *cobra.Command, args []string) {
		users, err := app.Users.ListUsers(context.Background())
		if err != nil {
			fail("failed to list users: %v", err)
		}
		if len(users) == 0 {
			fmt.Println("No users.")
			return
		}

		fmt.Println("----------------------------------------")
		fmt.Printf("%-6s %-20s %-20s %s\n", "ID", "Username", "Nickname", "Created")
		fmt.Println("----------------------------------------")
		for _, u := range users {
			fmt.Printf("%-6d %-20s %-20s %s\n", u.ID, u.Username, u.Nickname, u.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Println("----------------------------------------")
		fmt.Printf("%d user(s)\n", len(users))
	},
}

var userResetPwdCmd = &cobra.Command{
	Use:   "reset-pwd",
	Short: "Reset a user's password",
	Run: func(cmd *cobra.Command, args []string) {
		reader := bufio.NewReader(os.Stdin)

		users, err := app.Users.ListUsers(context.Background())
		if err != nil {
			fail("failed to list users: %v", err)
		}
		if len(users) == 0 {
			fmt.Println("No users.")
			return
		}
		for _, u := range users {
			fmt.Printf("  [%d] %s (%s)\n", u.ID, u.Username, u.Nickname)
		}
		fmt.Println()

		userID, err := strconv.ParseUint(readLine(reader, "User ID: "), 10, 32)
		if err != nil {
			fail("invalid user ID")
		}
		targetUser, err := app.Users.GetUserByID(context.Background(), uint(userID))
		if err != nil {
			fail("%v", err)
		}

		fmt.Printf("\nWarning: resetting the password of '%s' (ID %d).\n", targetUser.Username, targetUser.ID)
		confirm := strings.ToLower(readLine(reader, "Continue? (yes/no): "))
		if confirm != "yes" && confirm != "y" {
			fmt.Println("Cancelled.")
			return
		}

		newPassword := readPassword("New password (at least 6 characters): ")
		if err := app.Users.ResetPassword(context.Background(), targetUser.ID, newPassword); err != nil {
			fail("failed to reset password: %v", err)
		}
		fmt.Printf("\nPassword of '%s' reset.\n", targetUser.Username)
	},
}
