// Package cmd implements the interactive operator shell over the HabitLoop API.
package cmd

import (
	"fmt"

	ishell "github.com/abiosoft/ishell"
	"github.com/common-nighthawk/go-figure"

	"github.com/habitloop/habitloop/client"
	"github.com/habitloop/habitloop/lib/utils"
)

// guestCommands contains commands available before signing in.
var guestCommands []Command

// userCommands contains commands available only to signed-in users.
var userCommands []Command

// shell is the interactive shell instance users type commands into.
var shell *ishell.Shell

// Command defines a shell command: a Name, a short Desc, and the Func executed
// when the command is invoked.
type Command struct {
	Name string
	Desc string
	Func func(c *ishell.Context)
}

func addCommands(sh *ishell.Shell, commands []Command) {
	for _, command := range commands {
		cmd := command
		sh.AddCmd(&ishell.Cmd{
			Name: cmd.Name,
			Help: cmd.Desc,
			Func: cmd.Func,
		})
	}
}

func enterUserMode() {
	for _, command := range guestCommands {
		shell.DeleteCmd(command.Name)
	}
	addCommands(shell, userCommands)
}

func enterGuestMode() {
	for _, command := range userCommands {
		shell.DeleteCmd(command.Name)
	}
	addCommands(shell, guestCommands)
}

// InitShell sets up the shell with the guest and user command sets.
func InitShell() {
	shell = ishell.New()

	guestCommands = []Command{
		{
			Name: "signup",
			Desc: "Create a new account",
			Func: func(c *ishell.Context) {
				var username, email, password string
				for {
					c.Print("Enter Username: ")
					username = c.ReadLine()
					if len(username) > 1 {
						break
					}
					c.Println("Username must be longer than 1 character.")
				}
				for {
					c.Print("Enter Email: ")
					email = c.ReadLine()
					if utils.ValidateEmail(email) {
						break
					}
					c.Println("Email is not valid.")
				}
				for {
					c.Print("Enter Password: ")
					password = c.ReadPassword()
					if utils.ValidatePassword(password) {
						break
					}
					c.Println("Password must be at least 8 characters with letters and numbers.")
				}

				if err := client.Register(username, email, password); err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Println("Welcome, your account is ready.")
				enterUserMode()
			},
		},
		{
			Name: "signin",
			Desc: "Sign in to your account",
			Func: func(c *ishell.Context) {
				c.Print("Enter Email: ")
				email := c.ReadLine()
				c.Print("Enter Password: ")
				password := c.ReadPassword()

				if err := client.SignIn(email, password); err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Println("Welcome, you are now signed in.")
				enterUserMode()
			},
		},
		{
			Name: "seed",
			Desc: "Provision the demo account with sample habits",
			Func: func(c *ishell.Context) {
				if err := client.SeedDemo(); err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Println("Demo account ready: demo@example.com / Demo1234")
				enterUserMode()
			},
		},
	}

	userCommands = []Command{
		{
			Name: "habits",
			Desc: "List your habits",
			Func: func(c *ishell.Context) {
				habits, err := client.Habits()
				if err != nil {
					utils.PrintError(err.Error())
					return
				}
				if len(habits) == 0 {
					c.Println("No habits yet. Use 'newhabit' to create one.")
					return
				}
				for _, habit := range habits {
					c.Printf("%s  %-24s %-12s streak %d (best %d)\n",
						habit.ID.Hex(), habit.Title, habit.Frequency, habit.Streak, habit.LongestStreak)
				}
			},
		},
		{
			Name: "newhabit",
			Desc: "Create a new habit",
			Func: func(c *ishell.Context) {
				c.Print("Title: ")
				title := c.ReadLine()
				c.Print("Category: ")
				category := c.ReadLine()
				c.Print("Frequency (daily/weekly/monthly): ")
				frequency := c.ReadLine()
				c.Print("Priority (low/medium/high, empty for medium): ")
				priority := c.ReadLine()

				habit, err := client.CreateHabit(title, category, frequency, priority)
				if err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Printf("Created habit %s (%s)\n", habit.Title, habit.ID.Hex())
			},
		},
		{
			Name: "checkin",
			Desc: "Check in a habit for today",
			Func: func(c *ishell.Context) {
				c.Print("Habit id: ")
				habitID := c.ReadLine()

				result, err := client.CheckIn(habitID)
				if err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Printf("Checked in! Current streak: %d (best %d)\n", result.Streak, result.LongestStreak)
			},
		},
		{
			Name: "stats",
			Desc: "Show your analytics snapshot",
			Func: func(c *ishell.Context) {
				stats, err := client.Stats()
				if err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Printf("Habits: %d  Check-ins: %d  Completion rate: %d%%\n",
					stats.TotalHabits, stats.TotalLogs, stats.CompletionRate)
				for _, s := range stats.Streaks {
					c.Printf("  %-24s streak %d\n", s.Title, s.Streak)
				}
			},
		},
		{
			Name: "signout",
			Desc: "Sign out of your account",
			Func: func(c *ishell.Context) {
				if err := client.SignOut(); err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Println("Signed out.")
				enterGuestMode()
			},
		},
	}

	if client.IsSignedIn() {
		addCommands(shell, userCommands)
	} else {
		addCommands(shell, guestCommands)
	}
}

// Execute prints the banner and runs the shell until the user exits.
func Execute() {
	banner := figure.NewFigure("HabitLoop", "", true)
	banner.Print()
	fmt.Println()
	shell.Println("Type 'help' to see available commands.")
	shell.Run()
}
