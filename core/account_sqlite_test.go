package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = Account{
		Username: "alice",
		Password: "secret123",
		Fullname: "Alice Example",
		Email:    "alice@example.com",
		Phone:    "0123456789",
	}
	bob = Account{
		Username: "bob",
		Password: "secret123",
		Fullname: "Bob Example",
		Email:    "bob@example.com",
	}
)

type AccountFixture struct {
	*BaseFixture
	accountStore AccountStore
	otpStore     OTPStore
}

func NewAccountFixture(t *testing.T) *AccountFixture {
	base := NewBaseFixture(t)
	return &AccountFixture{
		BaseFixture:  base,
		accountStore: NewSQLiteAccountStore(base.db),
		otpStore:     NewSQLiteOTPStore(base.db),
	}
}

func TestCreateAccount(t *testing.T) {
	t.Run("create and read back", func(t *testing.T) {
		f := NewAccountFixture(t)
		defer f.tearDown()

		require.Nil(t, f.accountStore.CreateAccount(f.ctx, alice))

		profile, err := f.accountStore.GetAccountByUsername(f.ctx, alice.Username)
		require.Nil(t, err)
		require.NotNil(t, profile)
		assert.Equal(t, alice.Username, profile.Username)
		assert.Equal(t, alice.Fullname, profile.Fullname)
		assert.Equal(t, alice.Email, profile.Email)
	})

	t.Run("duplicate username conflicts", func(t *testing.T) {
		f := NewAccountFixture(t)
		defer f.tearDown()
		seedAccounts(f.ctx, f.t, f.accountStore, alice)

		dup := alice
		dup.Email = "other@example.com"
		dup.Phone = ""
		err := f.accountStore.CreateAccount(f.ctx, dup)
		assert.ErrorIs(t, err, ErrConflictedAccount)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		f := NewAccountFixture(t)
		defer f.tearDown()
		seedAccounts(f.ctx, f.t, f.accountStore, alice)

		dup := bob
		dup.Email = alice.Email
		err := f.accountStore.CreateAccount(f.ctx, dup)
		assert.ErrorIs(t, err, ErrConflictedAccount)
	})

	t.Run("duplicate phone conflicts", func(t *testing.T) {
		f := NewAccountFixture(t)
		defer f.tearDown()
		seedAccounts(f.ctx, f.t, f.accountStore, alice)

		dup := bob
		dup.Phone = alice.Phone
		err := f.accountStore.CreateAccount(f.ctx, dup)
		assert.ErrorIs(t, err, ErrConflictedAccount)
	})

	t.Run("empty email and phone do not conflict", func(t *testing.T) {
		f := NewAccountFixture(t)
		defer f.tearDown()

		first := Account{Username: "carol", Password: "secret123", Fullname: "Carol Example"}
		second := Account{Username: "dan", Password: "secret123", Fullname: "Dan Example"}
		require.Nil(t, f.accountStore.CreateAccount(f.ctx, first))
		require.Nil(t, f.accountStore.CreateAccount(f.ctx, second))
	})

	t.Run("uniqueness holds without a prior read", func(t *testing.T) {
		f := NewAccountFixture(t)
		defer f.tearDown()
		seedAccounts(f.ctx, f.t, f.accountStore, alice)

		// the schema itself rejects the duplicate, so a second writer
		// racing past any application-level check still conflicts
		_, err := f.db.ExecContext(f.ctx,
			`INSERT INTO accounts (username, password, fullname, email, phone, birthday, image, created_at)
			 VALUES ('impostor', 'x', 'Impostor', ?, '', '', '', ?)`,
			alice.Email, time.Now().UTC())
		require.NotNil(t, err)
	})

	t.Run("unknown account reads as nil", func(t *testing.T) {
		f := NewAccountFixture(t)
		defer f.tearDown()

		profile, err := f.accountStore.GetAccountByUsername(f.ctx, "nobody")
		require.Nil(t, err)
		assert.Nil(t, profile)
	})
}

func TestComparePassword(t *testing.T) {
	f := NewAccountFixture(t)
	defer f.tearDown()
	seedAccounts(f.ctx, f.t, f.accountStore, alice)

	ok, err := f.accountStore.ComparePassword(f.ctx, alice.Username, alice.Password)
	require.Nil(t, err)
	assert.True(t, ok)

	ok, err = f.accountStore.ComparePassword(f.ctx, alice.Username, "wrong")
	require.Nil(t, err)
	assert.False(t, ok)

	_, err = f.accountStore.ComparePassword(f.ctx, "nobody", "whatever")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestPasswordUpdates(t *testing.T) {
	t.Run("update by email", func(t *testing.T) {
		f := NewAccountFixture(t)
		defer f.tearDown()
		seedAccounts(f.ctx, f.t, f.accountStore, alice)

		require.Nil(t, f.accountStore.UpdatePassword(f.ctx, alice.Email, "newsecret"))

		ok, err := f.accountStore.ComparePassword(f.ctx, alice.Username, "newsecret")
		require.Nil(t, err)
		assert.True(t, ok)
	})

	t.Run("change by username", func(t *testing.T) {
		f := NewAccountFixture(t)
		defer f.tearDown()
		seedAccounts(f.ctx, f.t, f.accountStore, alice)

		require.Nil(t, f.accountStore.ChangePassword(f.ctx, alice.Username, "newsecret"))

		ok, err := f.accountStore.ComparePassword(f.ctx, alice.Username, alice.Password)
		require.Nil(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown email", func(t *testing.T) {
		f := NewAccountFixture(t)
		defer f.tearDown()

		err := f.accountStore.UpdatePassword(f.ctx, "nobody@example.com", "newsecret")
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})
}

func TestUpdateProfile(t *testing.T) {
	f := NewAccountFixture(t)
	defer f.tearDown()
	seedAccounts(f.ctx, f.t, f.accountStore, alice)

	profile, err := f.accountStore.UpdateProfile(f.ctx, alice.Username, ProfileUpdate{
		Fullname: "Alice Updated",
	})
	require.Nil(t, err)
	assert.Equal(t, "Alice Updated", profile.Fullname)
	// untouched fields keep their value
	assert.Equal(t, alice.Email, profile.Email)
}

func TestExistenceChecks(t *testing.T) {
	f := NewAccountFixture(t)
	defer f.tearDown()
	seedAccounts(f.ctx, f.t, f.accountStore, alice)

	taken, err := f.accountStore.UsernameExists(f.ctx, alice.Username)
	require.Nil(t, err)
	assert.True(t, taken)

	taken, err = f.accountStore.EmailExists(f.ctx, "free@example.com")
	require.Nil(t, err)
	assert.False(t, taken)

	taken, err = f.accountStore.PhoneExists(f.ctx, alice.Phone)
	require.Nil(t, err)
	assert.True(t, taken)
}

func TestOTP(t *testing.T) {
	t.Run("consume a valid code", func(t *testing.T) {
		f := NewAccountFixture(t)
		defer f.tearDown()

		require.Nil(t, f.otpStore.CreateOTP(f.ctx, alice.Email, "123456", time.Minute))
		require.Nil(t, f.otpStore.ConsumeOTP(f.ctx, alice.Email, "123456"))

		// consumed codes are single-use
		err := f.otpStore.ConsumeOTP(f.ctx, alice.Email, "123456")
		assert.ErrorIs(t, err, ErrInvalidOTP)
	})

	t.Run("wrong code", func(t *testing.T) {
		f := NewAccountFixture(t)
		defer f.tearDown()
		require.Nil(t, f.otpStore.CreateOTP(f.ctx, alice.Email, "123456", time.Minute))

		err := f.otpStore.ConsumeOTP(f.ctx, alice.Email, "654321")
		assert.ErrorIs(t, err, ErrInvalidOTP)
	})

	t.Run("expired code", func(t *testing.T) {
		f := NewAccountFixture(t)
		defer f.tearDown()
		require.Nil(t, f.otpStore.CreateOTP(f.ctx, alice.Email, "123456", -time.Minute))

		err := f.otpStore.ConsumeOTP(f.ctx, alice.Email, "123456")
		assert.ErrorIs(t, err, ErrExpiredOTP)
	})
}

func TestAccountValidate(t *testing.T) {
	valid := alice
	assert.Nil(t, valid.Validate())

	separatorName := alice
	separatorName.Username = "ali-ce"
	assert.NotNil(t, separatorName.Validate())

	shortPassword := alice
	shortPassword.Password = "abc"
	assert.NotNil(t, shortPassword.Validate())
}
