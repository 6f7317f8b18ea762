package imap

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	goimap "github.com/emersion/go-imap"
	"github.com/lib/pq"

	"github.com/briefkasten-app/briefkasten/interfaces"
	"github.com/briefkasten-app/briefkasten/internal/enum"
	er "github.com/briefkasten-app/briefkasten/internal/errors"
	"github.com/briefkasten-app/briefkasten/internal/logger"
	"github.com/briefkasten-app/briefkasten/internal/models"
	"github.com/briefkasten-app/briefkasten/internal/utils"
)

func testLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{DevMode: true})
	appLogger.InitLogger()
	return appLogger
}

// fakeMessage is one message living on the fake server.
type fakeMessage struct {
	flags   []string
	subject string
	from    *goimap.Address
	date    time.Time
	raw     string
}

type fakeFolder struct {
	info     *goimap.MailboxInfo
	messages map[uint32]*fakeMessage
}

type storeCall struct {
	folder string
	item   goimap.StoreItem
	flags  []string
}

// fakeRemote is an in-memory IMAP server good enough for the sync engine:
// UID-addressed fetches honor the requested set regardless of how many
// messages the folder holds, like a real server in UID mode.
type fakeRemote struct {
	mu         sync.Mutex
	folders    map[string]*fakeFolder
	selected   string
	selectErr  map[string]error
	searchErr  error
	quotaUsed  int64
	quotaTotal int64
	quotaErr   error
	storeErr   error
	logouts    int
	storeCalls []storeCall
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		folders:   make(map[string]*fakeFolder),
		selectErr: make(map[string]error),
	}
}

func (f *fakeRemote) addFolder(path, delimiter string, attributes ...string) *fakeFolder {
	folder := &fakeFolder{
		info: &goimap.MailboxInfo{
			Name:       path,
			Delimiter:  delimiter,
			Attributes: attributes,
		},
		messages: make(map[uint32]*fakeMessage),
	}
	f.folders[path] = folder
	return folder
}

func (f *fakeFolder) addMessage(uid uint32, subject, fromMailbox, fromHost string, flags ...string) *fakeMessage {
	msg := &fakeMessage{
		flags:   flags,
		subject: subject,
		from:    &goimap.Address{MailboxName: fromMailbox, HostName: fromHost},
		date:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		raw: "From: " + fromMailbox + "@" + fromHost + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"Content-Type: text/plain\r\n\r\n" +
			"body of " + subject + "\r\n",
	}
	f.messages[uid] = msg
	return msg
}

func (f *fakeRemote) ListFolders() ([]*goimap.MailboxInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	paths := make([]string, 0, len(f.folders))
	for path := range f.folders {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	infos := make([]*goimap.MailboxInfo, 0, len(paths))
	for _, path := range paths {
		infos = append(infos, f.folders[path].info)
	}
	return infos, nil
}

func (f *fakeRemote) Select(name string, readOnly bool) (*goimap.MailboxStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.selectErr[name]; err != nil {
		return nil, err
	}
	folder, ok := f.folders[name]
	if !ok {
		return nil, &er.ProtocolError{Err: er.ErrFolderNotFound}
	}
	f.selected = name

	status := &goimap.MailboxStatus{Name: name}
	status.Messages = uint32(len(folder.messages))
	return status, nil
}

func (f *fakeRemote) UidSearch(criteria *goimap.SearchCriteria) ([]uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.searchErr != nil {
		return nil, f.searchErr
	}
	folder := f.folders[f.selected]
	if folder == nil {
		return nil, &er.ProtocolError{Err: er.ErrFolderNotFound}
	}

	uids := make([]uint32, 0, len(folder.messages))
	for uid := range folder.messages {
		uids = append(uids, uid)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids, nil
}

func (f *fakeRemote) UidFetch(seqset *goimap.SeqSet, items []goimap.FetchItem, ch chan *goimap.Message) error {
	f.mu.Lock()
	folder := f.folders[f.selected]
	var uids []uint32
	if folder != nil {
		for uid := range folder.messages {
			if seqset.Contains(uid) {
				uids = append(uids, uid)
			}
		}
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })

	messages := make([]*goimap.Message, 0, len(uids))
	for _, uid := range uids {
		messages = append(messages, buildImapMessage(uid, folder.messages[uid]))
	}
	f.mu.Unlock()

	for _, msg := range messages {
		ch <- msg
	}
	close(ch)
	return nil
}

func buildImapMessage(uid uint32, fm *fakeMessage) *goimap.Message {
	msg := &goimap.Message{
		Uid:   uid,
		Flags: append([]string{}, fm.flags...),
	}
	if fm.subject != "" || fm.from != nil {
		msg.Envelope = &goimap.Envelope{
			Subject: fm.subject,
			Date:    fm.date,
		}
		if fm.from != nil {
			msg.Envelope.From = []*goimap.Address{fm.from}
		}
	}
	if fm.raw != "" {
		section := &goimap.BodySectionName{}
		msg.Body = map[*goimap.BodySectionName]goimap.Literal{
			section: bytes.NewBufferString(fm.raw),
		}
	}
	return msg
}

func (f *fakeRemote) UidStore(seqset *goimap.SeqSet, item goimap.StoreItem, value interface{}, ch chan *goimap.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.storeErr != nil {
		return f.storeErr
	}
	folder := f.folders[f.selected]
	if folder == nil {
		return &er.ProtocolError{Err: er.ErrFolderNotFound}
	}

	flags := make([]string, 0)
	if values, ok := value.([]interface{}); ok {
		for _, v := range values {
			if s, ok := v.(string); ok {
				flags = append(flags, s)
			}
		}
	}
	f.storeCalls = append(f.storeCalls, storeCall{folder: f.selected, item: item, flags: flags})

	adding := len(string(item)) > 0 && string(item)[0] == '+'
	for uid, msg := range folder.messages {
		if !seqset.Contains(uid) {
			continue
		}
		for _, flag := range flags {
			if adding {
				if !utils.IsStringInSlice(flag, msg.flags) {
					msg.flags = append(msg.flags, flag)
				}
			} else {
				kept := msg.flags[:0]
				for _, existing := range msg.flags {
					if existing != flag {
						kept = append(kept, existing)
					}
				}
				msg.flags = kept
			}
		}
	}
	return nil
}

func (f *fakeRemote) Expunge() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	folder := f.folders[f.selected]
	if folder == nil {
		return &er.ProtocolError{Err: er.ErrFolderNotFound}
	}
	for uid, msg := range folder.messages {
		if utils.IsStringInSlice(goimap.DeletedFlag, msg.flags) {
			delete(folder.messages, uid)
		}
	}
	return nil
}

func (f *fakeRemote) QuotaUsage() (int64, int64, error) {
	if f.quotaErr != nil {
		return 0, 0, f.quotaErr
	}
	return f.quotaUsed, f.quotaTotal, nil
}

func (f *fakeRemote) Logout() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.logouts++
	return nil
}

// In-memory repositories.

type emailKey struct {
	accountID string
	folder    string
	uid       uint32
}

type fakeEmailRepository struct {
	mu     sync.Mutex
	emails map[emailKey]*models.Email
}

func newFakeEmailRepository() *fakeEmailRepository {
	return &fakeEmailRepository{emails: make(map[emailKey]*models.Email)}
}

func (r *fakeEmailRepository) Upsert(ctx context.Context, email *models.Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := emailKey{email.AccountID, email.Folder, email.UID}
	copied := *email
	r.emails[key] = &copied
	return nil
}

func (r *fakeEmailRepository) GetByUID(ctx context.Context, accountID, folder string, uid uint32) (*models.Email, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	email, ok := r.emails[emailKey{accountID, folder, uid}]
	if !ok {
		return nil, nil
	}
	copied := *email
	return &copied, nil
}

func (r *fakeEmailRepository) ListByAccount(ctx context.Context, accountID string, folder string, limit, offset int) ([]*models.Email, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.Email
	for key, email := range r.emails {
		if key.accountID != accountID {
			continue
		}
		if folder != "" && key.folder != folder {
			continue
		}
		copied := *email
		result = append(result, &copied)
	}
	return result, nil
}

func (r *fakeEmailRepository) GetUIDsByFolder(ctx context.Context, accountID, folder string) ([]uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var uids []uint32
	for key := range r.emails {
		if key.accountID == accountID && key.folder == folder {
			uids = append(uids, key.uid)
		}
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids, nil
}

func (r *fakeEmailRepository) GetMaxUIDForFolder(ctx context.Context, accountID, folder string) (uint32, error) {
	uids, _ := r.GetUIDsByFolder(ctx, accountID, folder)
	if len(uids) == 0 {
		return 0, nil
	}
	return uids[len(uids)-1], nil
}

func (r *fakeEmailRepository) DeleteByUIDs(ctx context.Context, accountID, folder string, uids []uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, uid := range uids {
		delete(r.emails, emailKey{accountID, folder, uid})
	}
	return nil
}

func (r *fakeEmailRepository) UpdateFlags(ctx context.Context, accountID, folder string, uid uint32, isRead, isFlagged bool, rawFlags []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email, ok := r.emails[emailKey{accountID, folder, uid}]
	if !ok {
		return nil
	}
	email.IsRead = isRead
	email.IsFlagged = isFlagged
	email.RawFlags = pq.StringArray(rawFlags)
	return nil
}

func (r *fakeEmailRepository) MigrateFolder(ctx context.Context, accountID, oldFolder, newFolder string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, email := range r.emails {
		if key.accountID == accountID && key.folder == oldFolder {
			email.Folder = newFolder
			r.emails[emailKey{accountID, newFolder, key.uid}] = email
			delete(r.emails, key)
		}
	}
	return nil
}

func (r *fakeEmailRepository) ClearSmartCategory(ctx context.Context, categoryName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, email := range r.emails {
		if email.SmartCategory != nil && *email.SmartCategory == categoryName {
			email.SmartCategory = nil
		}
	}
	return nil
}

func (r *fakeEmailRepository) RenameSmartCategory(ctx context.Context, oldName, newName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, email := range r.emails {
		if email.SmartCategory != nil && *email.SmartCategory == oldName {
			renamed := newName
			email.SmartCategory = &renamed
		}
	}
	return nil
}

func (r *fakeEmailRepository) DeleteByAccount(ctx context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key := range r.emails {
		if key.accountID == accountID {
			delete(r.emails, key)
		}
	}
	return nil
}

type fakeAccountRepository struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
}

func newFakeAccountRepository() *fakeAccountRepository {
	return &fakeAccountRepository{accounts: make(map[string]*models.Account)}
}

func (r *fakeAccountRepository) Create(ctx context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if account.ID == "" {
		account.ID = utils.GenerateNanoIDWithPrefix("acct", 16)
	}
	copied := *account
	r.accounts[account.ID] = &copied
	return nil
}

func (r *fakeAccountRepository) Update(ctx context.Context, account *models.Account) error {
	return r.Create(ctx, account)
}

func (r *fakeAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return nil, er.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (r *fakeAccountRepository) GetAll(ctx context.Context) ([]*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.Account
	for _, account := range r.accounts {
		copied := *account
		result = append(result, &copied)
	}
	return result, nil
}

func (r *fakeAccountRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[id]; !ok {
		return er.ErrAccountNotFound
	}
	delete(r.accounts, id)
	return nil
}

func (r *fakeAccountRepository) UpdateConnectionStatus(ctx context.Context, id string, status enum.ConnectionStatus, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if account, ok := r.accounts[id]; ok {
		account.ConnectionStatus = status
		account.ErrorMessage = errorMessage
	}
	return nil
}

func (r *fakeAccountRepository) UpdateSyncState(ctx context.Context, id string, lastSyncUID uint32, syncedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if account, ok := r.accounts[id]; ok {
		account.LastSyncUID = lastSyncUID
		account.LastSyncedAt = &syncedAt
	}
	return nil
}

func (r *fakeAccountRepository) UpdateQuota(ctx context.Context, id string, used, total int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if account, ok := r.accounts[id]; ok {
		account.StorageUsed = used
		account.StorageTotal = total
	}
	return nil
}

type fakeCategoryRepository struct {
	mu         sync.Mutex
	categories map[string]*models.Category
}

func newFakeCategoryRepository() *fakeCategoryRepository {
	return &fakeCategoryRepository{categories: make(map[string]*models.Category)}
}

func (r *fakeCategoryRepository) GetAll(ctx context.Context) ([]*models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.Category
	for _, category := range r.categories {
		copied := *category
		result = append(result, &copied)
	}
	return result, nil
}

func (r *fakeCategoryRepository) GetByName(ctx context.Context, name string) (*models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	category, ok := r.categories[name]
	if !ok {
		return nil, nil
	}
	copied := *category
	return &copied, nil
}

func (r *fakeCategoryRepository) Create(ctx context.Context, category *models.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *category
	r.categories[category.Name] = &copied
	return nil
}

func (r *fakeCategoryRepository) EnsureFolderCategory(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.categories[name]; ok {
		existing.Type = enum.CategoryTypeFolder
		return nil
	}
	r.categories[name] = &models.Category{Name: name, Type: enum.CategoryTypeFolder}
	return nil
}

func (r *fakeCategoryRepository) Rename(ctx context.Context, oldName, newName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	category, ok := r.categories[oldName]
	if !ok {
		return er.ErrFolderNotFound
	}
	delete(r.categories, oldName)
	if _, exists := r.categories[newName]; !exists {
		category.Name = newName
		r.categories[newName] = category
	}
	return nil
}

func (r *fakeCategoryRepository) Delete(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.categories, name)
	return nil
}

type syncStateKey struct {
	accountID string
	folder    string
}

type fakeFolderSyncStateRepository struct {
	mu     sync.Mutex
	states map[syncStateKey]*models.FolderSyncState
}

func newFakeFolderSyncStateRepository() *fakeFolderSyncStateRepository {
	return &fakeFolderSyncStateRepository{states: make(map[syncStateKey]*models.FolderSyncState)}
}

func (r *fakeFolderSyncStateRepository) Get(ctx context.Context, accountID, folder string) (*models.FolderSyncState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.states[syncStateKey{accountID, folder}]
	if !ok {
		return nil, nil
	}
	copied := *state
	return &copied, nil
}

func (r *fakeFolderSyncStateRepository) GetAllForAccount(ctx context.Context, accountID string) ([]*models.FolderSyncState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.FolderSyncState
	for key, state := range r.states {
		if key.accountID == accountID {
			copied := *state
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *fakeFolderSyncStateRepository) Save(ctx context.Context, accountID, folder string, lastUID uint32, syncedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := syncStateKey{accountID, folder}
	if existing, ok := r.states[key]; ok {
		if existing.LastUID > lastUID {
			return nil
		}
		existing.LastUID = lastUID
		existing.LastSync = syncedAt
		return nil
	}
	r.states[key] = &models.FolderSyncState{
		AccountID: accountID,
		Folder:    folder,
		LastUID:   lastUID,
		LastSync:  syncedAt,
	}
	return nil
}

func (r *fakeFolderSyncStateRepository) DeleteByAccount(ctx context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key := range r.states {
		if key.accountID == accountID {
			delete(r.states, key)
		}
	}
	return nil
}

// newTestService wires a syncService against the fake remote and fake
// repositories, with one seeded account.
func newTestService(remote *fakeRemote) (*syncService, *interfaces.Repositories, *models.Account) {
	repos := &interfaces.Repositories{
		AccountRepository:         newFakeAccountRepository(),
		EmailRepository:           newFakeEmailRepository(),
		CategoryRepository:        newFakeCategoryRepository(),
		FolderSyncStateRepository: newFakeFolderSyncStateRepository(),
	}

	account := &models.Account{
		ID:           "acct_test1",
		Email:        "tester@example.org",
		Provider:     enum.EmailProviderGeneric,
		ImapServer:   "imap.example.org",
		ImapPort:     993,
		ImapUsername: "tester@example.org",
		ImapPassword: "secret",
		ImapSecurity: enum.EmailSecurityTLS,
	}
	_ = repos.AccountRepository.Create(context.Background(), account)

	service := &syncService{
		log:          testLogger(),
		repositories: repos,
		sessions: &sessionManager{
			timeout: time.Second,
			dial: func(ctx context.Context, account *models.Account, timeout time.Duration) (remoteClient, error) {
				return remote, nil
			},
		},
		resolver: newFolderResolver(DefaultCanonicalFolders()),
		registry: newSyncRegistry(),
	}
	return service, repos, account
}
