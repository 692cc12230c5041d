package firewall

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ibm/ovn-central/pkg/executor"
)

type backendMock struct {
	mock.Mock
}

func (b *backendMock) Enable(ctx context.Context) error {
	return b.Called().Error(0)
}

func (b *backendMock) DefaultPolicy(ctx context.Context, policy, direction string) error {
	return b.Called(policy, direction).Error(0)
}

func (b *backendMock) Reject(ctx context.Context, port int, comment string) error {
	return b.Called(port, comment).Error(0)
}

func (b *backendMock) Allow(ctx context.Context, src string, port int, comment string) error {
	return b.Called(src, port, comment).Error(0)
}

func (b *backendMock) Status(ctx context.Context) ([]Rule, error) {
	args := b.Called()
	return args.Get(0).([]Rule), args.Error(1)
}

func (b *backendMock) Delete(ctx context.Context, num int) error {
	return b.Called(num).Error(0)
}

func TestInitialize(t *testing.T) {
	b := &backendMock{}
	b.On("Enable").Return(nil).Once()
	b.On("DefaultPolicy", "allow", "incoming").Return(nil).Once()
	b.On("DefaultPolicy", "allow", "outgoing").Return(nil).Once()
	b.On("DefaultPolicy", "allow", "routed").Return(nil).Once()
	require.NoError(t, NewManager(b, logr.Discard()).Initialize(context.Background()))
	b.AssertExpectations(t)
}

func TestInitializeEnableFails(t *testing.T) {
	b := &backendMock{}
	b.On("Enable").Return(errors.New("ufw missing"))
	assert.Error(t, NewManager(b, logr.Discard()).Initialize(context.Background()))
	b.AssertNotCalled(t, "DefaultPolicy", mock.Anything, mock.Anything)
}

func TestConfigure(t *testing.T) {
	b := &backendMock{}
	for _, p := range []int{6641, 6643, 6644, 16642} {
		b.On("Reject", p, Comment).Return(nil).Once()
	}
	for _, addr := range []string{"10.5.0.11", "10.5.0.12"} {
		for _, p := range []int{6641, 16642, 6644, 6643} {
			b.On("Allow", addr, p, Comment).Return(nil).Once()
		}
	}
	b.On("Allow", "10.5.0.100", 6641, Comment).Return(nil).Once()
	b.On("Allow", "10.5.0.100", 16642, Comment).Return(nil).Once()
	b.On("Status").Return([]Rule{
		{Num: 1, Action: "allow in", From: "10.5.0.11", Comment: Comment},
		{Num: 2, Action: "allow in", From: "10.5.0.13", Comment: Comment},
		{Num: 3, Action: "allow in", From: "192.168.0.1", Comment: "other"},
		{Num: 4, Action: "reject in", From: "Anywhere", Comment: Comment},
		{Num: 5, Action: "allow in", From: "10.5.0.14", Comment: Comment},
	}, nil)
	b.On("Delete", 5).Return(nil).Once()
	b.On("Delete", 2).Return(nil).Once()

	err := NewManager(b, logr.Discard()).Configure(context.Background(), []PortAccess{
		{Ports: []int{6641, 16642, 6644, 6643}, Addrs: []string{"10.5.0.11", "10.5.0.12"}},
		{Ports: []int{6641, 16642}, Addrs: []string{"10.5.0.100"}},
	})
	require.NoError(t, err)
	b.AssertExpectations(t)

	var deleted []int
	for _, c := range b.Calls {
		if c.Method == "Delete" {
			deleted = append(deleted, c.Arguments.Int(0))
		}
	}
	assert.Equal(t, []int{5, 2}, deleted, "rules must be deleted highest number first")
}

func TestConfigureNoClientAddresses(t *testing.T) {
	b := &backendMock{}
	b.On("Reject", 6641, Comment).Return(nil)
	b.On("Reject", 16642, Comment).Return(nil)
	b.On("Status").Return([]Rule{}, nil)
	err := NewManager(b, logr.Discard()).Configure(context.Background(), []PortAccess{
		{Ports: []int{6641, 16642}},
	})
	require.NoError(t, err)
	b.AssertNotCalled(t, "Allow", mock.Anything, mock.Anything, mock.Anything)
}

const ufwStatus = `Status: active

     To                         Action      From
     --                         ------      ----
[ 1] 6641/tcp                   ALLOW IN    10.5.0.11                  # charm-ovn-central
[ 2] 16642/tcp                  ALLOW IN    10.5.0.11
[ 3] 6641/tcp                   REJECT IN   Anywhere                   # charm-ovn-central
[10] 6641/tcp (v6)              REJECT IN   Anywhere (v6)              # charm-ovn-central
`

func TestParseStatus(t *testing.T) {
	rules := ParseStatus(ufwStatus)
	require.Len(t, rules, 4)
	assert.Equal(t, Rule{Num: 1, To: "6641/tcp", Action: "allow in", From: "10.5.0.11", Comment: Comment}, rules[0])
	assert.Equal(t, Rule{Num: 2, To: "16642/tcp", Action: "allow in", From: "10.5.0.11"}, rules[1])
	assert.Equal(t, "reject in", rules[2].Action)
	assert.Equal(t, Rule{Num: 10, To: "6641/tcp (v6)", Action: "reject in", From: "Anywhere (v6)", Comment: Comment}, rules[3])
}

func TestUFWCommands(t *testing.T) {
	runner := &executor.RunnerMock{Response: []byte(ufwStatus)}
	u := NewUFW(runner)
	ctx := context.Background()
	require.NoError(t, u.Enable(ctx))
	require.NoError(t, u.DefaultPolicy(ctx, "allow", "incoming"))
	require.NoError(t, u.Reject(ctx, 6641, Comment))
	require.NoError(t, u.Allow(ctx, "10.5.0.11", 6641, Comment))
	require.NoError(t, u.Delete(ctx, 3))
	rules, err := u.Status(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 4)

	var cmds []string
	for _, c := range runner.Calls() {
		cmds = append(cmds, c.String())
	}
	assert.Equal(t, []string{
		"ufw --force enable",
		"ufw default allow incoming",
		"ufw reject to any port 6641 proto tcp comment charm-ovn-central",
		"ufw prepend allow from 10.5.0.11 to any port 6641 proto tcp comment charm-ovn-central",
		"ufw --force delete 3",
		"ufw status numbered",
	}, cmds)
}
