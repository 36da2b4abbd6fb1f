package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/any-hub/file-hub/internal/config"
	"github.com/any-hub/file-hub/internal/version"
)

// printVersion 输出注入的版本 + 提交信息。
func printVersion() {
	fmt.Fprintln(stdOut, version.Full())
}

// printBanner 在启动时输出一张配置摘要表，终端不支持颜色时 color 会自动降级。
func printBanner(w io.Writer, cfg *config.Config, started time.Time) {
	title := color.New(color.FgCyan, color.Bold)
	title.Fprintln(w, version.Full())

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Setting", "Value"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetColumnSeparator("")
	table.SetCenterSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)

	d := cfg.Delivery
	burst := "off"
	if d.BurstRatio > 0 {
		burst = fmt.Sprintf("%.0f%%", d.BurstRatio*100)
	}
	table.AppendBulk([][]string{
		{"Serving", cfg.Server.RootDir},
		{"Listen", "http://" + cfg.ListenAddr()},
		{"Cache", fmt.Sprintf("%d entries, ttl %s, files <= %s",
			d.CacheCapacity, d.CacheTTL.DurationValue(), humanize.IBytes(uint64(d.CacheSizeThreshold)))},
		{"Rate limit", fmt.Sprintf("%s/s per connection, burst %s", humanize.IBytes(uint64(d.RateLimit)), burst)},
		{"CORS", fmt.Sprintf("%t", cfg.Server.EnableCORS)},
		{"Started", started.Format(time.RFC3339)},
	})
	table.Render()
}
