package main

import (
	"context"
	"time"

	"github.com/alecthomas/kong"

	"github.com/i474232898/forecast-bot/internal/weather"
	"github.com/i474232898/forecast-bot/internal/whatsapp"
)

type CLI struct {
	Serve ServeCmd `cmd:"" default:"1" help:"Run the webhook server and the forecast scheduler."`
	Send  SendCmd  `cmd:"" help:"Deliver one forecast and exit."`
}

type ServeCmd struct{}

func (c *ServeCmd) Run() error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()
	return a.serve()
}

type SendCmd struct {
	To       string        `arg:"" help:"Recipient phone number in international format, digits only."`
	Location string        `arg:"" help:"Location to forecast."`
	Auto     bool          `help:"Record the delivery as scheduled."`
	Timeout  time.Duration `default:"2m" help:"Upper bound for the whole pipeline run."`
}

func (c *SendCmd) Run() error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()
	return a.service.SendForecast(ctx, weather.Request{
		To:       whatsapp.NormalizeNumber(c.To),
		Location: c.Location,
		Auto:     c.Auto,
	})
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("forecast-bot"),
		kong.Description("WhatsApp weather forecast bot."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run())
}
