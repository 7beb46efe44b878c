package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"

	"github.com/airbusgeo/godal"
	"github.com/common-nighthawk/go-figure"
	bannercolor "github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/mapbiomas/brazil-cerrado/internal/log"
	"github.com/mapbiomas/brazil-cerrado/internal/notification"
)

func printBanner() {
	figure1 := figure.NewFigure("MapBiomas", "isometric1", true)
	figure2 := figure.NewFigure("Cerrado", "isometric1", true)
	bannercolor.Cyan(figure1.String())
	bannercolor.Cyan(figure2.String())
	fmt.Println()
}

func loadEnv() {
	for _, path := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(path); err == nil {
			return
		}
	}
	fmt.Printf("\033[33mNo .env file found, using the process environment.\033[0m\n")
}

func recoverPanic() {
	r := recover()
	if r == nil {
		return
	}
	pc, file, line, ok := runtime.Caller(3)
	location := "Unknown location"
	if ok {
		location = fmt.Sprintf("%s:%d in %s", file, line, runtime.FuncForPC(pc).Name())
	}

	fmt.Printf("\n\033[31mPANIC: %v\033[0m\n", r)
	fmt.Printf("\033[31mLocation: %s\033[0m\n", location)
	fmt.Printf("\033[31mExiting...\033[0m\n")

	errMessage := fmt.Sprintf("Cerrado CLI panic:\n\n%v\n\nLocation: %s\n\nStack trace:\n%s", r, location, debug.Stack())
	if err := notification.SendDiscordErrorNotification(errMessage); err != nil {
		fmt.Printf("\033[31mFailed to send notification: %s\033[0m\n", err.Error())
	}
	log.Sync()
	os.Exit(2)
}

func main() {
	defer recoverPanic()

	loadEnv()
	godal.RegisterAll()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCommand().ExecuteContext(ctx)
	log.Sync()
	if err != nil {
		fmt.Printf("\n\033[31mError: %s\033[0m\n", err.Error())
		os.Exit(1)
	}
}
