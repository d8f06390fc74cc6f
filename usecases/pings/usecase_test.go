package pings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"pingwatch/clients"
	discordclient "pingwatch/clients/discord"
	"pingwatch/core"
	"pingwatch/db"
	"pingwatch/models"
	"pingwatch/services/memberpings"
	"pingwatch/services/txmanager"
)

const (
	testGuildID      = "100000000000000001"
	testModRoleID    = "100000000000000002"
	testFanRoleID    = "100000000000000003"
	testAuthorID     = "100000000000000010"
	testOtherUserID  = "100000000000000011"
	testBotID        = "100000000000000099"
	testChannelID    = "100000000000000050"
	testLogChannelID = "100000000000000051"
	testMessageID    = "100000000000000777"
)

var (
	testGuild  = models.Snowflake(100000000000000001)
	testAuthor = models.Snowflake(100000000000000010)
	testTime   = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
)

type pingsUseCaseMocks struct {
	discordClient      *discordclient.MockDiscordClient
	memberPingsService *memberpings.MockMemberPingsService
}

type pingsUseCaseTestFixture struct {
	useCase *PingsUseCase
	mocks   *pingsUseCaseMocks
	ctx     context.Context
}

func setupPingsUseCaseTest(t *testing.T, pingResponses ...string) *pingsUseCaseTestFixture {
	mocks := &pingsUseCaseMocks{
		discordClient:      new(discordclient.MockDiscordClient),
		memberPingsService: new(memberpings.MockMemberPingsService),
	}

	useCase := NewPingsUseCase(
		mocks.discordClient,
		mocks.memberPingsService,
		map[string]string{testGuildID: testLogChannelID},
		pingResponses,
		zaptest.NewLogger(t),
	)
	useCase.pickResponse = func(int) int { return 0 }

	return &pingsUseCaseTestFixture{
		useCase: useCase,
		mocks:   mocks,
		ctx:     context.Background(),
	}
}

// assertAllExpectations asserts expectations on all mocks
func (f *pingsUseCaseTestFixture) assertAllExpectations(t *testing.T) {
	f.mocks.discordClient.AssertExpectations(t)
	f.mocks.memberPingsService.AssertExpectations(t)
}

func createTestGuildRoles() map[string]models.RoleDescriptor {
	return map[string]models.RoleDescriptor{
		testGuildID:   {ID: testGuildID},
		testModRoleID: {ID: testModRoleID, CanMentionEveryone: true},
		testFanRoleID: {ID: testFanRoleID, Mentionable: true},
	}
}

func createTestMessageEvent(content string, mentions ...string) models.DiscordMessageEvent {
	return models.DiscordMessageEvent{
		GuildID:           testGuildID,
		ChannelID:         testChannelID,
		MessageID:         testMessageID,
		AuthorID:          testAuthorID,
		AuthorUsername:    "pingy_user",
		AuthorDisplayName: "Pingy",
		AuthorAvatarURL:   "https://cdn.example/pingy.png",
		MemberRoleIDs:     []string{},
		Content:           content,
		Mentions:          mentions,
		Timestamp:         testTime,
	}
}

func createTestRecord(pings uint64) *models.MemberPingRecord {
	return &models.MemberPingRecord{GuildID: testGuild, UserID: testAuthor, Pings: pings}
}

func TestPingsUseCase_HandleMessage_DirectMessage(t *testing.T) {
	f := setupPingsUseCaseTest(t)
	event := createTestMessageEvent("<@" + testOtherUserID + ">", testOtherUserID)
	event.GuildID = ""

	action, err := f.useCase.HandleMessage(f.ctx, event)
	require.NoError(t, err)
	assert.Equal(t, models.NotifierActionNone, action.Kind)
	f.mocks.discordClient.AssertNotCalled(t, "GetGuildRoles", mock.Anything, mock.Anything)
}

func TestPingsUseCase_HandleMessage_NoPingsSkipsStorage(t *testing.T) {
	f := setupPingsUseCaseTest(t)
	f.mocks.discordClient.On("GetGuildRoles", mock.Anything, testGuildID).Return(createTestGuildRoles(), nil)

	action, err := f.useCase.HandleMessage(f.ctx, createTestMessageEvent("hello @everyone <@&"+testModRoleID+">"))
	require.NoError(t, err)

	assert.Equal(t, models.NotifierActionNone, action.Kind, "unprivileged @everyone and a non-mentionable role count nothing")
	f.mocks.memberPingsService.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.mocks.memberPingsService.AssertNotCalled(t, "GetEveryonePingSnapshot", mock.Anything, mock.Anything, mock.Anything)
	f.assertAllExpectations(t)
}

func TestPingsUseCase_HandleMessage_PermissionLookupFailure(t *testing.T) {
	f := setupPingsUseCaseTest(t)
	f.mocks.discordClient.On("GetGuildRoles", mock.Anything, testGuildID).Return(nil, errors.New("discord unavailable"))

	action, err := f.useCase.HandleMessage(f.ctx, createTestMessageEvent("<@"+testOtherUserID+">", testOtherUserID))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrPermissionLookup)
	assert.Equal(t, models.NotifierActionNone, action.Kind)
	f.mocks.memberPingsService.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPingsUseCase_HandleMessage_FetchesMemberRolesWhenMissing(t *testing.T) {
	f := setupPingsUseCaseTest(t)
	event := createTestMessageEvent("@here meeting")
	event.MemberRoleIDs = nil

	f.mocks.discordClient.On("GetGuildRoles", mock.Anything, testGuildID).Return(createTestGuildRoles(), nil)
	f.mocks.discordClient.On("GetMember", mock.Anything, testGuildID, testAuthorID).
		Return(&clients.DiscordMember{UserID: testAuthorID, RoleIDs: []string{testModRoleID}}, nil)
	f.mocks.memberPingsService.On("Reconcile", mock.Anything, testGuild, testAuthor, testTime, models.MentionTally{HerePing: true}).
		Return(createTestRecord(1), nil)
	f.mocks.discordClient.On("GetBotUserID").Return(testBotID)

	action, err := f.useCase.HandleMessage(f.ctx, event)
	require.NoError(t, err)
	assert.Equal(t, models.NotifierActionNone, action.Kind, "@here alone is counted but not announced")
	f.assertAllExpectations(t)
}

func TestPingsUseCase_HandleMessage_MemberLookupFailure(t *testing.T) {
	f := setupPingsUseCaseTest(t)
	event := createTestMessageEvent("@here")
	event.MemberRoleIDs = nil

	f.mocks.discordClient.On("GetGuildRoles", mock.Anything, testGuildID).Return(createTestGuildRoles(), nil)
	f.mocks.discordClient.On("GetMember", mock.Anything, testGuildID, testAuthorID).Return(nil, errors.New("unknown member"))

	_, err := f.useCase.HandleMessage(f.ctx, event)
	assert.ErrorIs(t, err, core.ErrPermissionLookup)
	f.mocks.memberPingsService.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPingsUseCase_HandleMessage_EveryonePingNotifies(t *testing.T) {
	f := setupPingsUseCaseTest(t)
	event := createTestMessageEvent("@everyone <@"+testOtherUserID+"> "+strings.Repeat("x", 150), testOtherUserID)
	event.MemberRoleIDs = []string{testModRoleID}

	guildLast := testTime.Add(-3 * time.Hour)
	memberLast := testTime.Add(-48 * time.Hour)
	tally := models.MentionTally{UserPings: 1, EveryonePing: true}

	var calls []string
	f.mocks.discordClient.On("GetGuildRoles", mock.Anything, testGuildID).Return(createTestGuildRoles(), nil)
	f.mocks.memberPingsService.On("GetEveryonePingSnapshot", mock.Anything, testGuild, testAuthor).
		Run(func(mock.Arguments) { calls = append(calls, "snapshot") }).
		Return(&models.EveryonePingSnapshot{GuildLastEveryone: &guildLast, MemberLastEveryone: &memberLast, MemberPings: 5}, nil)
	f.mocks.memberPingsService.On("Reconcile", mock.Anything, testGuild, testAuthor, testTime, tally).
		Run(func(mock.Arguments) { calls = append(calls, "reconcile") }).
		Return(createTestRecord(7), nil)

	action, err := f.useCase.HandleMessage(f.ctx, event)
	require.NoError(t, err)

	assert.Equal(t, []string{"snapshot", "reconcile"}, calls, "snapshot must be taken before the write")
	require.Equal(t, models.NotifierActionNotifyBroadcast, action.Kind)
	notice := action.Broadcast
	require.NotNil(t, notice)
	assert.Equal(t, "Pingy", notice.AuthorDisplayName)
	assert.Equal(t, testAuthorID, notice.AuthorID)
	assert.Equal(t, uint64(7), notice.TotalPings)
	assert.Equal(t, &guildLast, notice.GuildLastEveryone)
	assert.Equal(t, &memberLast, notice.MemberLastEveryone)
	assert.Equal(t, "https://discord.com/channels/"+testGuildID+"/"+testChannelID+"/"+testMessageID, notice.MessageLink)
	assert.Len(t, []rune(notice.Excerpt), 100)
	assert.Equal(t, testTime, notice.PingedAt)
	f.assertAllExpectations(t)
}

func TestPingsUseCase_HandleMessage_BotMentionAutoReply(t *testing.T) {
	f := setupPingsUseCaseTest(t, "who pinged me?", "hello!")

	f.mocks.discordClient.On("GetGuildRoles", mock.Anything, testGuildID).Return(createTestGuildRoles(), nil)
	f.mocks.memberPingsService.On("Reconcile", mock.Anything, testGuild, testAuthor, testTime, models.MentionTally{UserPings: 1}).
		Return(createTestRecord(1), nil)
	f.mocks.discordClient.On("GetBotUserID").Return(testBotID)

	action, err := f.useCase.HandleMessage(f.ctx, createTestMessageEvent("<@"+testBotID+">", testBotID))
	require.NoError(t, err)
	assert.Equal(t, models.NotifierActionAutoReply, action.Kind)
	assert.Equal(t, "who pinged me?", action.ReplyText)
	f.assertAllExpectations(t)
}

func TestPingsUseCase_HandleMessage_BotMentionWithoutResponses(t *testing.T) {
	f := setupPingsUseCaseTest(t)

	f.mocks.discordClient.On("GetGuildRoles", mock.Anything, testGuildID).Return(createTestGuildRoles(), nil)
	f.mocks.memberPingsService.On("Reconcile", mock.Anything, testGuild, testAuthor, testTime, models.MentionTally{UserPings: 1}).
		Return(createTestRecord(1), nil)
	f.mocks.discordClient.On("GetBotUserID").Return(testBotID)

	action, err := f.useCase.HandleMessage(f.ctx, createTestMessageEvent("<@"+testBotID+">", testBotID))
	require.NoError(t, err)
	assert.Equal(t, models.NotifierActionNone, action.Kind)
}

func TestPingsUseCase_HandleMessage_EveryoneWinsOverBotMention(t *testing.T) {
	f := setupPingsUseCaseTest(t, "who pinged me?")
	event := createTestMessageEvent("@everyone <@"+testBotID+">", testBotID)
	event.MemberRoleIDs = []string{testModRoleID}

	f.mocks.discordClient.On("GetGuildRoles", mock.Anything, testGuildID).Return(createTestGuildRoles(), nil)
	f.mocks.memberPingsService.On("GetEveryonePingSnapshot", mock.Anything, testGuild, testAuthor).
		Return(&models.EveryonePingSnapshot{}, nil)
	f.mocks.memberPingsService.On("Reconcile", mock.Anything, testGuild, testAuthor, testTime, mock.Anything).
		Return(createTestRecord(2), nil)

	action, err := f.useCase.HandleMessage(f.ctx, event)
	require.NoError(t, err)
	assert.Equal(t, models.NotifierActionNotifyBroadcast, action.Kind)
	assert.Equal(t, uint64(2), action.Broadcast.TotalPings)
	assert.Nil(t, action.Broadcast.GuildLastEveryone)
	f.mocks.discordClient.AssertNotCalled(t, "GetBotUserID")
}

func TestPingsUseCase_HandleMessage_StorageFailure(t *testing.T) {
	f := setupPingsUseCaseTest(t)
	storageErr := fmt.Errorf("%w: disk full", core.ErrStorage)

	f.mocks.discordClient.On("GetGuildRoles", mock.Anything, testGuildID).Return(createTestGuildRoles(), nil)
	f.mocks.memberPingsService.On("Reconcile", mock.Anything, testGuild, testAuthor, testTime, mock.Anything).
		Return(nil, storageErr)

	action, err := f.useCase.HandleMessage(f.ctx, createTestMessageEvent("<@&"+testFanRoleID+">"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStorage)
	assert.Equal(t, models.NotifierActionNone, action.Kind)
}

func TestPingsUseCase_HandleMessage_InvariantViolation(t *testing.T) {
	invariantErr := fmt.Errorf("%w: empty tally", core.ErrInvariantViolation)
	event := createTestMessageEvent("<@&" + testFanRoleID + ">")

	t.Run("production logger returns the error", func(t *testing.T) {
		f := setupPingsUseCaseTest(t)
		f.mocks.discordClient.On("GetGuildRoles", mock.Anything, testGuildID).Return(createTestGuildRoles(), nil)
		f.mocks.memberPingsService.On("Reconcile", mock.Anything, testGuild, testAuthor, testTime, mock.Anything).
			Return(nil, invariantErr)

		action, err := f.useCase.HandleMessage(f.ctx, event)
		assert.ErrorIs(t, err, core.ErrInvariantViolation)
		assert.Equal(t, models.NotifierActionNone, action.Kind)
	})

	t.Run("development logger panics", func(t *testing.T) {
		f := setupPingsUseCaseTest(t)
		f.useCase.logger = zaptest.NewLogger(t, zaptest.WrapOptions(zap.Development()))
		f.mocks.discordClient.On("GetGuildRoles", mock.Anything, testGuildID).Return(createTestGuildRoles(), nil)
		f.mocks.memberPingsService.On("Reconcile", mock.Anything, testGuild, testAuthor, testTime, mock.Anything).
			Return(nil, invariantErr)

		assert.Panics(t, func() {
			_, _ = f.useCase.HandleMessage(f.ctx, event)
		})
	})
}

func TestPingsUseCase_ProcessDiscordMessageEvent(t *testing.T) {
	everyoneEvent := func() models.DiscordMessageEvent {
		event := createTestMessageEvent("@everyone")
		event.MemberRoleIDs = []string{testModRoleID}
		return event
	}
	expectEveryone := func(f *pingsUseCaseTestFixture) {
		f.mocks.discordClient.On("GetGuildRoles", mock.Anything, testGuildID).Return(createTestGuildRoles(), nil)
		f.mocks.memberPingsService.On("GetEveryonePingSnapshot", mock.Anything, testGuild, testAuthor).
			Return(&models.EveryonePingSnapshot{MemberPings: 1}, nil)
		f.mocks.memberPingsService.On("Reconcile", mock.Anything, testGuild, testAuthor, testTime, models.MentionTally{EveryonePing: true}).
			Return(createTestRecord(2), nil)
	}

	t.Run("broadcast goes to the log channel", func(t *testing.T) {
		f := setupPingsUseCaseTest(t)
		expectEveryone(f)
		f.mocks.discordClient.On("SendBroadcastNotice", mock.Anything, testLogChannelID, mock.MatchedBy(func(n *models.BroadcastNotice) bool {
			return n.TotalPings == 2 && n.Excerpt == "@everyone"
		})).Return(nil)

		require.NoError(t, f.useCase.ProcessDiscordMessageEvent(f.ctx, everyoneEvent()))
		f.assertAllExpectations(t)
	})

	t.Run("dispatch failure keeps the counter update", func(t *testing.T) {
		f := setupPingsUseCaseTest(t)
		expectEveryone(f)
		f.mocks.discordClient.On("SendBroadcastNotice", mock.Anything, testLogChannelID, mock.Anything).
			Return(errors.New("missing permissions"))

		err := f.useCase.ProcessDiscordMessageEvent(f.ctx, everyoneEvent())
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrPresentationDispatch)
		f.mocks.memberPingsService.AssertNumberOfCalls(t, "Reconcile", 1)
	})

	t.Run("guild without log channel", func(t *testing.T) {
		f := setupPingsUseCaseTest(t)
		f.useCase.logChannels = map[string]string{}
		expectEveryone(f)

		require.NoError(t, f.useCase.ProcessDiscordMessageEvent(f.ctx, everyoneEvent()))
		f.mocks.discordClient.AssertNotCalled(t, "SendBroadcastNotice", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("auto reply references the message", func(t *testing.T) {
		f := setupPingsUseCaseTest(t, "who pinged me?")
		f.mocks.discordClient.On("GetGuildRoles", mock.Anything, testGuildID).Return(createTestGuildRoles(), nil)
		f.mocks.memberPingsService.On("Reconcile", mock.Anything, testGuild, testAuthor, testTime, mock.Anything).
			Return(createTestRecord(1), nil)
		f.mocks.discordClient.On("GetBotUserID").Return(testBotID)
		f.mocks.discordClient.On("ReplyToMessage", mock.Anything, testGuildID, testChannelID, testMessageID, "who pinged me?").
			Return(nil)

		require.NoError(t, f.useCase.ProcessDiscordMessageEvent(f.ctx, createTestMessageEvent("<@"+testBotID+">", testBotID)))
		f.assertAllExpectations(t)
	})

	t.Run("handling error is returned without dispatch", func(t *testing.T) {
		f := setupPingsUseCaseTest(t)
		f.mocks.discordClient.On("GetGuildRoles", mock.Anything, testGuildID).Return(nil, errors.New("timeout"))

		err := f.useCase.ProcessDiscordMessageEvent(f.ctx, everyoneEvent())
		assert.ErrorIs(t, err, core.ErrPermissionLookup)
		f.mocks.discordClient.AssertNotCalled(t, "SendBroadcastNotice", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestPingsUseCase_ExampleScenario(t *testing.T) {
	discordClient := new(discordclient.MockDiscordClient)
	logger := zaptest.NewLogger(t)
	service := memberpings.NewMemberPingsService(
		db.NewInMemoryMemberPingsRepository(),
		txmanager.PassthroughTransactionManager{},
		logger,
	)
	useCase := NewPingsUseCase(discordClient, service, map[string]string{testGuildID: testLogChannelID}, nil, logger)
	ctx := context.Background()

	discordClient.On("GetGuildRoles", mock.Anything, testGuildID).Return(createTestGuildRoles(), nil)
	discordClient.On("GetBotUserID").Return(testBotID)

	first := createTestMessageEvent("@everyone <@"+testOtherUserID+">", testOtherUserID)
	first.MemberRoleIDs = []string{testModRoleID}
	action, err := useCase.HandleMessage(ctx, first)
	require.NoError(t, err)
	require.Equal(t, models.NotifierActionNotifyBroadcast, action.Kind)
	assert.Equal(t, uint64(2), action.Broadcast.TotalPings)
	assert.Nil(t, action.Broadcast.GuildLastEveryone, "first @everyone in the guild")

	stored, err := service.GetMemberPingInfo(ctx, testGuild, testAuthor)
	require.NoError(t, err)
	require.True(t, stored.IsPresent())
	assert.Equal(t, uint64(2), stored.MustGet().Pings)
	assert.Equal(t, testTime, *stored.MustGet().LastEveryonePing)
	assert.Equal(t, testTime, *stored.MustGet().LastUserPing)
	assert.Nil(t, stored.MustGet().LastHerePing)
	assert.Nil(t, stored.MustGet().LastRolePing)

	later := testTime.Add(10 * time.Second)
	second := createTestMessageEvent("<@&" + testFanRoleID + ">")
	second.Timestamp = later
	action, err = useCase.HandleMessage(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, models.NotifierActionNone, action.Kind)

	stored, err = service.GetMemberPingInfo(ctx, testGuild, testAuthor)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stored.MustGet().Pings)
	assert.Equal(t, later, *stored.MustGet().LastRolePing)
	assert.Equal(t, testTime, *stored.MustGet().LastEveryonePing, "@everyone timestamp untouched by the role ping")
}

func TestPingsUseCase_GetPingInfo(t *testing.T) {
	requestedAt := testTime.Add(time.Hour)
	member := &clients.DiscordMember{UserID: testAuthorID, DisplayName: "Pingy", AvatarURL: "https://cdn.example/pingy.png"}

	t.Run("member with history", func(t *testing.T) {
		f := setupPingsUseCaseTest(t)
		here := testTime
		f.mocks.discordClient.On("GetMember", mock.Anything, testGuildID, testAuthorID).Return(member, nil)
		f.mocks.memberPingsService.On("GetMemberPingInfo", mock.Anything, testGuild, testAuthor).
			Return(mo.Some(&models.MemberPingRecord{GuildID: testGuild, UserID: testAuthor, Pings: 9, LastHerePing: &here}), nil)

		info, err := f.useCase.GetPingInfo(f.ctx, testGuildID, testAuthorID, requestedAt)
		require.NoError(t, err)
		assert.Equal(t, "Pingy", info.DisplayName)
		assert.Equal(t, uint64(9), info.Pings)
		assert.Equal(t, &here, info.LastHerePing)
		assert.Nil(t, info.LastEveryonePing)
		assert.Equal(t, requestedAt, info.RequestedAt)
		f.assertAllExpectations(t)
	})

	t.Run("member never pinged", func(t *testing.T) {
		f := setupPingsUseCaseTest(t)
		f.mocks.discordClient.On("GetMember", mock.Anything, testGuildID, testAuthorID).Return(member, nil)
		f.mocks.memberPingsService.On("GetMemberPingInfo", mock.Anything, testGuild, testAuthor).
			Return(mo.None[*models.MemberPingRecord](), nil)

		info, err := f.useCase.GetPingInfo(f.ctx, testGuildID, testAuthorID, requestedAt)
		require.NoError(t, err)
		assert.Zero(t, info.Pings)
		assert.Nil(t, info.LastUserPing)
	})

	t.Run("unknown member", func(t *testing.T) {
		f := setupPingsUseCaseTest(t)
		f.mocks.discordClient.On("GetMember", mock.Anything, testGuildID, testAuthorID).Return(nil, errors.New("404"))

		_, err := f.useCase.GetPingInfo(f.ctx, testGuildID, testAuthorID, requestedAt)
		assert.True(t, core.IsNotFoundError(err))
	})

	t.Run("invalid user ID", func(t *testing.T) {
		f := setupPingsUseCaseTest(t)
		_, err := f.useCase.GetPingInfo(f.ctx, testGuildID, "not-a-snowflake", requestedAt)
		assert.ErrorIs(t, err, core.ErrInvalidID)
	})
}

func TestPingsUseCase_GetLeaderboard(t *testing.T) {
	t.Run("delegates to the service", func(t *testing.T) {
		f := setupPingsUseCaseTest(t)
		records := []*models.MemberPingRecord{{GuildID: testGuild, UserID: testAuthor, Pings: 4}}
		f.mocks.memberPingsService.On("GetTopMembers", mock.Anything, testGuild, 5).Return(records, nil).Once()

		got, err := f.useCase.GetLeaderboard(f.ctx, testGuildID, 5)

		require.NoError(t, err)
		assert.Equal(t, records, got)
		f.assertAllExpectations(t)
	})

	t.Run("invalid guild ID", func(t *testing.T) {
		f := setupPingsUseCaseTest(t)

		_, err := f.useCase.GetLeaderboard(f.ctx, "guild", 5)

		assert.ErrorIs(t, err, core.ErrInvalidID)
		f.mocks.memberPingsService.AssertNotCalled(t, "GetTopMembers", mock.Anything, mock.Anything, mock.Anything)
	})
}
