package checklist

import (
	"github.com/oklog/ulid/v2"
)

const (
	// CustomPrefix starts the id of every staff added row.
	CustomPrefix = "custom-"
	// CustomTaskName is the placeholder name of a new custom row.
	CustomTaskName = "（追加項目を入力してください）"

	// Task ids the reconciliation and the legacy import refer to.
	SalesInputTaskID = "6"
	SalesCheckTaskID = "7"
	PointsTaskID     = "12"
	NotesTaskID      = "13"

	// YearEndTerm is the term that also carries the tax return tasks.
	YearEndTerm = 3
)

// Shops lists the e-commerce channels a client reports figures for.
var Shops = []string{"Yahoo!", "楽天市場", "Amazon", "au PAY", "Qoo10", "その他"}

var termMonths = map[int][]int{
	1: {1, 2, 3, 4, 5},
	2: {6, 7, 8, 9},
	3: {10, 11, 12},
}

// Terms returns the valid term numbers in order.
func Terms() []int { return []int{1, 2, 3} }

// ValidTerm reports whether term is 1, 2 or 3.
func ValidTerm(term int) bool {
	_, ok := termMonths[term]
	return ok
}

// TermMonths returns the calendar months covered by term.
func TermMonths(term int) []int {
	months := termMonths[term]
	out := make([]int, len(months))
	copy(out, months)
	return out
}

// TermOfMonth returns the term a calendar month belongs to, or 0.
func TermOfMonth(month int) int {
	for term, months := range termMonths {
		for _, m := range months {
			if m == month {
				return term
			}
		}
	}
	return 0
}

// ValidShop reports whether shop is part of the catalog.
func ValidShop(shop string) bool {
	return shopOrder(shop) < len(Shops)
}

func shopOrder(shop string) int {
	for i, s := range Shops {
		if s == shop {
			return i
		}
	}
	return len(Shops)
}

type templateRow struct {
	id     string
	name   string
	kind   Kind
	manual string
}

var monthlyRows = []templateRow{
	{"1", "連携の認証の切れた預金・カードの再認証", KindPlain, "連携口座一覧で要再認証の口座を再認証してください。放置すると明細が取得できなくなります。"},
	{"2", "預金の仕訳登録", KindPlain, "銀行口座の入出金明細を確認し、仕訳を登録してください。定期的な支払いは自動仕訳ルールを設定します。"},
	{"3", "クレジットカードの仕訳登録", KindPlain, "カードの利用明細を仕訳登録してください。貸方科目が未払金、補助科目が指定のものか確認します。"},
	{"3(2)", "仕訳取り込みツールにてクレジットカード取り込み", KindPlain, "CSV変換ツールで大量のカード明細を一括で取り込みます。"},
	{"4", "現金の仕訳登録", KindPlain, "現金払いの領収書・レシートを入力してください。"},
	{"5", "各ECサイトからの入金明細、出店料の明細をダウンロードして保管", KindPlain, "各ECサイトの管理画面から当月分の明細をダウンロードし、指定フォルダに保管してください。"},
	{SalesInputTaskID, "ECオロチから「売上仕入」シートに入力（売上・仕入・手数料）", KindSalesInput, "ECオロチの集計データを店舗ごと・月ごとに入力してください。決算時の手数料は売上総額からMF入金額を差し引いて算出します。"},
	{SalesCheckTaskID, "売上仕入集計とMF損益計算書の比較確認（仕入差異チェック）", KindSalesCheck, "MFの月次売上・仕入を入力してください。仕入は誤差10%以内であることを確認します。差異が大きい月は理由を記入してください。"},
	{"8", "MF未払金残高の過少・過大確認（マイナス残高等）", KindPlain, "貸借対照表で未払金の残高を確認してください。"},
	{"9", "Amazon使用履歴のExcelダウンロード保管", KindPlain, "Amazonの注文履歴レポートをダウンロードしてください。困難な場合は注文履歴画面をすぐ提示できるようにしておきます。"},
	{"10", "Amazon領収書一括ダウンロード保管", KindPlain, "電子帳簿保存法対応のため、領収書データを保存してください。"},
	{"11", "自動連携カードの私用Amazon利用分の金額記入", KindPlain, "事業用カードで私用の購入をした場合、その金額を入力してください。"},
	{PointsTaskID, "仕入時Amazonポイントの私用使用分の金額記入", KindPlain, "事業で貯めたポイントを個人利用した場合、その額を入力してください。"},
	{NotesTaskID, "その月特異事項（高額な購入、契約変更など）", KindTextarea, "高額な購入や契約変更など、通常の仕入以外でメモしておきたい事項を入力してください。"},
}

var yearEndRows = []templateRow{
	{"14", "[書類] 確定申告・控除関係書類のアップロード", KindPlain, "源泉徴収票や各種控除証明書など該当する書類をアップロードしてください。"},
	{"15", "[書類] 12月末時点の残高証憑の保存", KindPlain, "12月31日時点の預金・ECモールの残高がわかる資料を保存してください。"},
	{"16", "[Yahoo!] 12月売上（翌年入金分）の計上・明細保存", KindPlain, "12月末時点で未入金の売上だけを売掛金として計上してください。"},
	{"17", "[楽天市場] 年末締めの未払・売掛計上処理", KindPlain, "25日締めのため、計上済みの売上を二重計上しないよう未払・売掛を計上してください。"},
	{"18", "[au Wowma!] 12月売上（翌年入金分）の計上", KindPlain, "au PAY マーケットの12月未入金売上を計上してください。"},
	{"19", "[Qoo10] 12月売上（翌年入金分）の計上", KindPlain, "Qoo10の12月未入金売上と販売手数料を計上してください。"},
	{"20", "[決算] 売上・仕入の最終突合", KindPlain, "年間の売上・仕入に大きな乖離がないか最終確認してください。"},
	{"21", "[決算] 預金残高の一致確認（MF vs 通帳）", KindPlain, "12/31時点の預金残高が通帳残高と一致しているか確認してください。"},
	{"22", "[決算] 未払金残高の一致確認（カード利用分）", KindPlain, "未払金残高が翌年引き落とし予定額の合計と一致しているか確認してください。"},
	{"23", "[決算] 売掛金残高の一致確認（売上入金待ち）", KindPlain, "売掛金残高が年末売上（未入金分）の合計と一致しているか確認してください。"},
	{"24", "[決算] マイナス残高の確認・修正", KindPlain, "残高がマイナスになっている科目がないか確認し、修正してください。"},
	{"25", "[決算] 決算整理仕訳（家事按分・ポイント等）", KindPlain, "家事按分やポイント収入などの決算仕訳を計上してください。"},
}

func (r templateRow) task() Task {
	t := Task{
		ID:           r.id,
		Name:         r.name,
		Manual:       r.manual,
		OfficeStatus: TaskPending,
		Payload:      NewPayload(r.kind),
	}
	if r.id == "1" {
		t.ClientInput = "不要"
		t.OfficeStatus = TaskOK
	}
	return t
}

// Template returns a fresh copy of the fixed task list for term.
func Template(term int) []Task {
	rows := monthlyRows
	if term == YearEndTerm {
		rows = append(append([]templateRow{}, monthlyRows...), yearEndRows...)
	}
	tasks := make([]Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, r.task())
	}
	return tasks
}

// NewCustomTask returns an empty staff defined row.
func NewCustomTask() Task {
	return Task{
		ID:           CustomPrefix + ulid.Make().String(),
		Name:         CustomTaskName,
		Custom:       true,
		OfficeStatus: TaskPending,
		Payload:      Plain{},
	}
}
