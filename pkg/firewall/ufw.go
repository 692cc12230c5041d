package firewall

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ibm/ovn-central/pkg/executor"
)

// UFW drives the Uncomplicated Firewall command line.
type UFW struct {
	runner executor.Runner
}

func NewUFW(runner executor.Runner) *UFW {
	return &UFW{runner: runner}
}

func (u *UFW) run(ctx context.Context, args ...string) (string, error) {
	out, err := u.runner.Run(ctx, "ufw", args...)
	return string(out), errors.Wrapf(err, "ufw %s", strings.Join(args, " "))
}

func (u *UFW) Enable(ctx context.Context) error {
	_, err := u.run(ctx, "--force", "enable")
	return err
}

func (u *UFW) DefaultPolicy(ctx context.Context, policy, direction string) error {
	_, err := u.run(ctx, "default", policy, direction)
	return err
}

func (u *UFW) Reject(ctx context.Context, port int, comment string) error {
	_, err := u.run(ctx, "reject", "to", "any", "port", strconv.Itoa(port), "proto", "tcp", "comment", comment)
	return err
}

func (u *UFW) Allow(ctx context.Context, src string, port int, comment string) error {
	_, err := u.run(ctx, "prepend", "allow", "from", src, "to", "any", "port", strconv.Itoa(port), "proto", "tcp", "comment", comment)
	return err
}

func (u *UFW) Delete(ctx context.Context, num int) error {
	_, err := u.run(ctx, "--force", "delete", strconv.Itoa(num))
	return err
}

// [ 1] 6641/tcp                   ALLOW IN    10.5.0.11                  # charm-ovn-central
var ruleRe = regexp.MustCompile(`^\[\s*(\d+)\]\s+(.+?)\s+((?:ALLOW|DENY|REJECT|LIMIT)(?: (?:IN|OUT|FWD))?)\s+(.+?)(?:\s+#\s*(.*?))?\s*$`)

func (u *UFW) Status(ctx context.Context) ([]Rule, error) {
	out, err := u.run(ctx, "status", "numbered")
	if err != nil {
		return nil, err
	}
	return ParseStatus(out), nil
}

// ParseStatus parses `ufw status numbered`.
func ParseStatus(out string) []Rule {
	var rules []Rule
	for _, line := range strings.Split(out, "\n") {
		m := ruleRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		num, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		rules = append(rules, Rule{
			Num:     num,
			To:      m[2],
			Action:  strings.ToLower(m[3]),
			From:    m[4],
			Comment: m[5],
		})
	}
	return rules
}
